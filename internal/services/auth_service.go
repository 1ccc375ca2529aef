package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/config"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Verification identifier prefixes.
const (
	purposeTwoFactorLogin = "two-factor-login:"
	purposeResetPassword  = "reset-password:"
	purposeOAuthState     = "oauth-state:"
)

const (
	apiKeyPrefix      = "rr_"
	backupCodeCount   = 10
	pendingLoginTTL   = 10 * time.Minute
	passwordResetTTL  = time.Hour
	oauthStateTTL     = 10 * time.Minute
	resumeGrantTTL    = 24 * time.Hour
	defaultSessionTTL = 7 * 24 * time.Hour
)

// Mailer sends plain text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// FileRemover deletes every upload of a user.
type FileRemover interface {
	DeleteUserFiles(ctx context.Context, userID string) error
}

// SessionMeta describes the client a session is created for.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type AuthService struct {
	DB         *gorm.DB
	Mail       Mailer
	Files      FileRemover
	Grants     *auth.Signer
	Providers  map[string]*auth.Provider
	AppURL     string
	SessionTTL time.Duration
	Log        *zap.Logger

	now func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mail Mailer, files FileRemover, grants *auth.Signer, log *zap.Logger) *AuthService {
	s := &AuthService{
		DB:         db,
		Mail:       mail,
		Files:      files,
		Grants:     grants,
		Providers:  map[string]*auth.Provider{},
		AppURL:     cfg.App.URL,
		SessionTTL: cfg.Auth.SessionTTL,
		Log:        log,
		now:        time.Now,
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = defaultSessionTTL
	}
	callback := func(name string) string {
		return cfg.App.URL + "/api/v1/auth/oauth/" + name + "/callback"
	}
	if cfg.OAuth.Google.Enabled() {
		s.Providers[models.ProviderGoogle] = auth.NewGoogleProvider(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret, callback(models.ProviderGoogle))
	}
	if cfg.OAuth.GitHub.Enabled() {
		s.Providers[models.ProviderGitHub] = auth.NewGitHubProvider(cfg.OAuth.GitHub.ClientID, cfg.OAuth.GitHub.ClientSecret, callback(models.ProviderGitHub))
	}
	return s
}

// ProviderNames lists the enabled sign-in methods.
func (s *AuthService) ProviderNames() []string {
	names := []string{models.ProviderCredential}
	for name := range s.Providers {
		names = append(names, name)
	}
	slices.Sort(names[1:])
	return names
}

func (s *AuthService) Register(ctx context.Context, req *dtos.RegisterRequest, meta SessionMeta) (*models.User, *dtos.SessionResponse, error) {
	username := resume.ToUsername(req.Username)
	if len(username) < 3 {
		return nil, nil, fmt.Errorf("%w: username must have at least 3 valid characters", ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	user := &models.User{
		Name:            strings.TrimSpace(req.Name),
		Email:           email,
		Username:        username,
		DisplayUsername: req.Username,
	}
	var session *dtos.SessionResponse
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUserAvailable(tx, email, username); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		account := &models.Account{UserID: user.ID, ProviderID: models.ProviderCredential, AccountID: user.ID, Password: hash}
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("creating account: %w", err)
		}
		session, err = s.createSession(tx, user.ID, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.Log.Info("user registered", zap.String("user_id", user.ID))
	return user, session, nil
}

func checkUserAvailable(tx *gorm.DB, email, username string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("checking username: %w", err)
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	return nil
}

// Login checks credentials. When the user has two-factor enabled no
// session is created; instead a pending token is returned together with
// ErrTwoFactorRequired.
func (s *AuthService) Login(ctx context.Context, identifier, password string, meta SessionMeta) (*dtos.SessionResponse, string, error) {
	db := s.DB.WithContext(ctx)
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	var user models.User
	err := db.Where("email = ? OR username = ?", identifier, identifier).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting user: %w", err)
	}
	if !s.checkUserPassword(db, user.ID, password) {
		return nil, "", ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		pending, err := auth.NewToken(32)
		if err != nil {
			return nil, "", err
		}
		if err := s.putVerification(db, purposeTwoFactorLogin+auth.HashToken(pending), user.ID, pendingLoginTTL); err != nil {
			return nil, "", err
		}
		return nil, pending, ErrTwoFactorRequired
	}

	session, err := s.createSession(db, user.ID, meta)
	if err != nil {
		return nil, "", err
	}
	return session, "", nil
}

// VerifyTwoFactorLogin finishes a login started by Login with a TOTP code
// or an unused backup code. Backup codes are consumed.
func (s *AuthService) VerifyTwoFactorLogin(ctx context.Context, pending, code string, meta SessionMeta) (*dtos.SessionResponse, error) {
	var session *dtos.SessionResponse
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.peekVerification(tx, purposeTwoFactorLogin+auth.HashToken(pending))
		if err != nil {
			return err
		}

		var tf models.TwoFactor
		if err := tx.Where("user_id = ? AND verified = ?", v.Value, true).First(&tf).Error; err != nil {
			return ErrInvalidCode
		}
		if !totp.Validate(code, tf.Secret) {
			if !consumeBackupCode(&tf, code) {
				return ErrInvalidCode
			}
			if err := tx.Model(&tf).Select("backup_codes").Updates(&tf).Error; err != nil {
				return fmt.Errorf("consuming backup code: %w", err)
			}
		}

		if err := tx.Delete(v).Error; err != nil {
			return fmt.Errorf("deleting verification: %w", err)
		}
		session, err = s.createSession(tx, v.Value, meta)
		return err
	})
	return session, err
}

func consumeBackupCode(tf *models.TwoFactor, code string) bool {
	hash := auth.HashToken(strings.ToLower(strings.TrimSpace(code)))
	i := slices.Index(tf.BackupCodes, hash)
	if i < 0 {
		return false
	}
	tf.BackupCodes = slices.Delete(tf.BackupCodes, i, i+1)
	return true
}

func (s *AuthService) createSession(tx *gorm.DB, userID string, meta SessionMeta) (*dtos.SessionResponse, error) {
	token, err := auth.NewToken(32)
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		Token:     auth.HashToken(token),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.SessionTTL),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := tx.Create(session).Error; err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &dtos.SessionResponse{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.DB.WithContext(ctx).Where("token = ?", auth.HashToken(token)).Delete(&models.Session{}).Error
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its user. Expired sessions are
// removed.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	db := s.DB.WithContext(ctx)
	var session models.Session
	err := db.Where("token = ?", auth.HashToken(token)).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		db.Delete(&session)
		return nil, ErrInvalidCredentials
	}
	return s.userByID(db, session.UserID)
}

func (s *AuthService) userByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	err := db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) checkUserPassword(db *gorm.DB, userID, password string) bool {
	var account models.Account
	err := db.Where("user_id = ? AND provider_id = ?", userID, models.ProviderCredential).First(&account).Error
	if err != nil {
		return false
	}
	return auth.CheckPassword(account.Password, password)
}

// EnableTwoFactor starts two-factor setup. The returned secret is inactive
// until confirmed with VerifyTwoFactor.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID, password string) (*dtos.TwoFactorSetupResponse, error) {
	db := s.DB.WithContext(ctx)
	user, err := s.userByID(db, userID)
	if err != nil {
		return nil, err
	}
	if !s.checkUserPassword(db, userID, password) {
		return nil, ErrInvalidPassword
	}

	issuer := "Resume Builder"
	if u, err := url.Parse(s.AppURL); err == nil && u.Host != "" {
		issuer = u.Host
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: user.Email})
	if err != nil {
		return nil, fmt.Errorf("generating totp secret: %w", err)
	}
	codes, err := auth.NewBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashed := make([]string, len(codes))
	for i, c := range codes {
		hashed[i] = auth.HashToken(c)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.TwoFactor{}).Error; err != nil {
			return fmt.Errorf("deleting previous two-factor: %w", err)
		}
		tf := &models.TwoFactor{UserID: userID, Secret: key.Secret(), BackupCodes: hashed}
		if err := tx.Create(tf).Error; err != nil {
			return fmt.Errorf("creating two-factor: %w", err)
		}
		return tx.Model(user).Update("two_factor_enabled", false).Error
	})
	if err != nil {
		return nil, err
	}
	return &dtos.TwoFactorSetupResponse{Secret: key.Secret(), URI: key.URL(), BackupCodes: codes}, nil
}

// VerifyTwoFactor confirms the pending secret with a TOTP code and turns
// two-factor on.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID, code string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tf models.TwoFactor
		if err := tx.Where("user_id = ?", userID).First(&tf).Error; err != nil {
			return ErrInvalidCode
		}
		if !totp.Validate(code, tf.Secret) {
			return ErrInvalidCode
		}
		if err := tx.Model(&tf).Update("verified", true).Error; err != nil {
			return fmt.Errorf("verifying two-factor: %w", err)
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("two_factor_enabled", true).Error
	})
}

func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, password string) error {
	db := s.DB.WithContext(ctx)
	if !s.checkUserPassword(db, userID, password) {
		return ErrInvalidPassword
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.TwoFactor{}).Error; err != nil {
			return fmt.Errorf("deleting two-factor: %w", err)
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("two_factor_enabled", false).Error
	})
}

// CreateAPIKey returns the plaintext key. Only its hash is stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string, expiresInDays int) (*dtos.APIKeyResponse, error) {
	token, err := auth.NewToken(32)
	if err != nil {
		return nil, err
	}
	plain := apiKeyPrefix + token
	key := &models.APIKey{
		UserID: userID,
		Name:   strings.TrimSpace(name),
		Prefix: plain[:len(apiKeyPrefix)+6],
		Hash:   auth.HashToken(plain),
	}
	if expiresInDays > 0 {
		exp := s.now().Add(time.Duration(expiresInDays) * 24 * time.Hour)
		key.ExpiresAt = &exp
	}
	if err := s.DB.WithContext(ctx).Create(key).Error; err != nil {
		return nil, fmt.Errorf("creating api key: %w", err)
	}
	return &dtos.APIKeyResponse{ID: key.ID, Name: key.Name, Key: plain, ExpiresAt: key.ExpiresAt}, nil
}

func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	return keys, nil
}

func (s *AuthService) DeleteAPIKey(ctx context.Context, userID, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.APIKey{})
	if res.Error != nil {
		return fmt.Errorf("deleting api key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AuthenticateAPIKey resolves a plaintext key to its user.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, plain string) (*models.User, error) {
	if !strings.HasPrefix(plain, apiKeyPrefix) {
		return nil, ErrInvalidCredentials
	}
	db := s.DB.WithContext(ctx)
	var key models.APIKey
	if err := db.Where("hash = ?", auth.HashToken(plain)).First(&key).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}
	if err := db.Model(&key).Update("last_used_at", now).Error; err != nil {
		s.Log.Warn("touching api key", zap.String("key_id", key.ID), zap.Error(err))
	}
	return s.userByID(db, key.UserID)
}

// RequestPasswordReset mails a reset link. Unknown addresses are ignored
// so the endpoint does not reveal which emails are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	db := s.DB.WithContext(ctx)
	var user models.User
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}

	token, err := auth.NewToken(32)
	if err != nil {
		return err
	}
	if err := s.putVerification(db, purposeResetPassword+auth.HashToken(token), user.ID, passwordResetTTL); err != nil {
		return err
	}

	link := s.AppURL + "/auth/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password. It expires in one hour.\n\n%s\n\nIf you did not ask for this, ignore this email.\n", user.Name, link)
	if err := s.Mail.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password with a single-use reset token and
// signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.peekVerification(tx, purposeResetPassword+auth.HashToken(token))
		if err != nil {
			return err
		}
		userID := v.Value

		var account models.Account
		err = tx.Where("user_id = ? AND provider_id = ?", userID, models.ProviderCredential).First(&account).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			account = models.Account{UserID: userID, ProviderID: models.ProviderCredential, AccountID: userID, Password: hash}
			if err := tx.Create(&account).Error; err != nil {
				return fmt.Errorf("creating account: %w", err)
			}
		case err != nil:
			return fmt.Errorf("getting account: %w", err)
		default:
			if err := tx.Model(&account).Update("password", hash).Error; err != nil {
				return fmt.Errorf("updating password: %w", err)
			}
		}

		if err := tx.Delete(v).Error; err != nil {
			return fmt.Errorf("deleting verification: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("revoking sessions: %w", err)
		}
		return nil
	})
}

// VerifyResumePassword checks the password of a public resume and returns
// a signed grant that unlocks it.
func (s *AuthService) VerifyResumePassword(ctx context.Context, username, slug, password string) (string, error) {
	var r models.Resume
	err := s.DB.WithContext(ctx).Omit("data").
		Joins("JOIN users ON users.id = resumes.user_id").
		Where("users.username = ? AND resumes.slug = ? AND resumes.is_public = ?", resume.ToUsername(username), slug, true).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting resume: %w", err)
	}
	if r.Password == nil || !auth.CheckPassword(*r.Password, password) {
		return "", ErrInvalidPassword
	}
	return s.Grants.Sign(GrantSubject(&r), resumeGrantTTL), nil
}

// DeleteAccount removes the user and everything they own.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resumeIDs := tx.Model(&models.Resume{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("resume_id IN (?)", resumeIDs).Delete(&models.ResumeStatistics{}).Error; err != nil {
			return fmt.Errorf("deleting statistics: %w", err)
		}
		for _, m := range []any{&models.Resume{}, &models.Session{}, &models.Account{}, &models.TwoFactor{}, &models.APIKey{}} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return fmt.Errorf("deleting %T: %w", m, err)
			}
		}
		if err := tx.Where("value = ?", userID).Delete(&models.Verification{}).Error; err != nil {
			return fmt.Errorf("deleting verifications: %w", err)
		}
		res := tx.Where("id = ?", userID).Delete(&models.User{})
		if res.Error != nil {
			return fmt.Errorf("deleting user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.Files != nil {
		if err := s.Files.DeleteUserFiles(ctx, userID); err != nil {
			s.Log.Error("deleting uploads of removed user", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.Log.Info("account deleted", zap.String("user_id", userID))
	return nil
}

// OAuthStart returns the provider's consent url and the state it carries.
// The caller keeps state in the browser that started the flow.
func (s *AuthService) OAuthStart(ctx context.Context, provider string) (string, string, error) {
	p, ok := s.Providers[provider]
	if !ok {
		return "", "", ErrUnsupportedProvider
	}
	state, err := auth.NewToken(24)
	if err != nil {
		return "", "", err
	}
	if err := s.putVerification(s.DB.WithContext(ctx), purposeOAuthState+state, provider, oauthStateTTL); err != nil {
		return "", "", err
	}
	return p.AuthCodeURL(state), state, nil
}

// OAuthCallback signs in with a provider. browserState is the state kept
// by the browser at OAuthStart and must equal the returned state. The
// account is found by the provider's user id, then by email; otherwise a
// new user is created.
func (s *AuthService) OAuthCallback(ctx context.Context, provider, state, browserState, code string, meta SessionMeta) (*dtos.SessionResponse, error) {
	p, ok := s.Providers[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(browserState)) != 1 {
		return nil, ErrInvalidCode
	}
	db := s.DB.WithContext(ctx)
	v, err := s.peekVerification(db, purposeOAuthState+state)
	if err != nil || v.Value != provider {
		return nil, ErrInvalidCode
	}
	db.Delete(v)

	profile, tok, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var session *dtos.SessionResponse
	err = db.Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Where("provider_id = ? AND account_id = ?", provider, profile.ID).First(&account).Error
		switch {
		case err == nil:
			account.AccessToken = tok.AccessToken
			account.RefreshToken = tok.RefreshToken
			if err := tx.Model(&account).Select("access_token", "refresh_token").Updates(&account).Error; err != nil {
				return fmt.Errorf("updating account tokens: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			user, err := s.userForProfile(tx, profile)
			if err != nil {
				return err
			}
			account = models.Account{
				UserID:       user.ID,
				ProviderID:   provider,
				AccountID:    profile.ID,
				AccessToken:  tok.AccessToken,
				RefreshToken: tok.RefreshToken,
			}
			if err := tx.Create(&account).Error; err != nil {
				return fmt.Errorf("linking account: %w", err)
			}
		default:
			return fmt.Errorf("getting account: %w", err)
		}

		session, err = s.createSession(tx, account.UserID, meta)
		return err
	})
	return session, err
}

func (s *AuthService) userForProfile(tx *gorm.DB, profile auth.Profile) (*models.User, error) {
	email := strings.ToLower(profile.Email)
	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	base := resume.ToUsername(profile.Username)
	if len(base) < 3 {
		base = resume.ToUsername(strings.Split(email, "@")[0])
	}
	if len(base) < 3 {
		base = "user"
	}
	username, err := uniqueUsername(tx, base)
	if err != nil {
		return nil, err
	}

	user = models.User{
		Name:            profile.Name,
		Email:           email,
		Username:        username,
		DisplayUsername: username,
		Image:           profile.Image,
		EmailVerified:   true,
	}
	if user.Name == "" {
		user.Name = username
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.Log.Info("user registered", zap.String("user_id", user.ID), zap.String("provider", "oauth"))
	return &user, nil
}

func uniqueUsername(tx *gorm.DB, base string) (string, error) {
	name := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", name).Count(&count).Error; err != nil {
			return "", fmt.Errorf("checking username: %w", err)
		}
		if count == 0 {
			return name, nil
		}
		name = fmt.Sprintf("%s%d", base, n)
	}
}

func (s *AuthService) putVerification(db *gorm.DB, identifier, value string, ttl time.Duration) error {
	v := &models.Verification{Identifier: identifier, Value: value, ExpiresAt: s.now().Add(ttl)}
	if err := db.Create(v).Error; err != nil {
		return fmt.Errorf("creating verification: %w", err)
	}
	return nil
}

// peekVerification returns an unexpired verification without consuming it.
func (s *AuthService) peekVerification(db *gorm.DB, identifier string) (*models.Verification, error) {
	var v models.Verification
	if err := db.Where("identifier = ?", identifier).First(&v).Error; err != nil {
		return nil, ErrInvalidCode
	}
	if s.now().After(v.ExpiresAt) {
		db.Delete(&v)
		return nil, ErrInvalidCode
	}
	return &v, nil
}
