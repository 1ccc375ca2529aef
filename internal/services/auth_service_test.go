package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var meta = SessionMeta{IPAddress: "127.0.0.1", UserAgent: "test"}

func register(t *testing.T, ts *testServices, username string) (*models.User, *dtos.SessionResponse) {
	t.Helper()

	u, session, err := ts.Auth.Register(context.Background(), &dtos.RegisterRequest{
		Name:     "Test " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: "password1",
	}, meta)
	require.NoError(t, err)
	return u, session
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)

	u, session := register(t, ts, "Ada.Lovelace")

	t.Run("should normalize the username and keep the display form", func(t *testing.T) {
		assert.Equal(t, "ada.lovelace", u.Username)
		assert.Equal(t, "Ada.Lovelace", u.DisplayUsername)
	})

	t.Run("should authenticate the returned session", func(t *testing.T) {
		got, err := ts.Auth.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		var stored models.Session
		require.NoError(t, ts.DB.First(&stored).Error)
		assert.NotEqual(t, session.Token, stored.Token)
	})

	t.Run("should reject taken emails and usernames", func(t *testing.T) {
		_, _, err := ts.Auth.Register(ctx, &dtos.RegisterRequest{Name: "x", Username: "other", Email: "ADA.LOVELACE@example.com", Password: "password1"}, meta)
		assert.ErrorIs(t, err, ErrEmailTaken)
		_, _, err = ts.Auth.Register(ctx, &dtos.RegisterRequest{Name: "x", Username: "ada.lovelace", Email: "new@example.com", Password: "password1"}, meta)
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("should log in with email or username", func(t *testing.T) {
		s, _, err := ts.Auth.Login(ctx, "ada.lovelace@example.com", "password1", meta)
		require.NoError(t, err)
		assert.NotEmpty(t, s.Token)

		s, _, err = ts.Auth.Login(ctx, "Ada.Lovelace", "password1", meta)
		require.NoError(t, err)
		assert.NotEmpty(t, s.Token)
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		_, _, err := ts.Auth.Login(ctx, "ada.lovelace", "nope", meta)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = ts.Auth.Login(ctx, "nobody", "password1", meta)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("should end the session on logout", func(t *testing.T) {
		require.NoError(t, ts.Auth.Logout(ctx, session.Token))
		_, err := ts.Auth.Authenticate(ctx, session.Token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)
	_, session := register(t, ts, "ada")

	ts.Auth.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err := ts.Auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTwoFactor(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)
	u, _ := register(t, ts, "ada")

	setup, err := ts.Auth.EnableTwoFactor(ctx, u.ID, "password1")
	require.NoError(t, err)
	require.Len(t, setup.BackupCodes, backupCodeCount)
	assert.Contains(t, setup.URI, "otpauth://totp/")

	t.Run("should stay off until the code is verified", func(t *testing.T) {
		_, _, err := ts.Auth.Login(ctx, "ada", "password1", meta)
		assert.NoError(t, err)

		assert.ErrorIs(t, ts.Auth.VerifyTwoFactor(ctx, u.ID, "000000"), ErrInvalidCode)
		code, err := totp.GenerateCode(setup.Secret, time.Now())
		require.NoError(t, err)
		require.NoError(t, ts.Auth.VerifyTwoFactor(ctx, u.ID, code))
	})

	t.Run("should require a code after the password", func(t *testing.T) {
		session, pending, err := ts.Auth.Login(ctx, "ada", "password1", meta)
		assert.ErrorIs(t, err, ErrTwoFactorRequired)
		assert.Nil(t, session)
		require.NotEmpty(t, pending)

		code, err := totp.GenerateCode(setup.Secret, time.Now())
		require.NoError(t, err)
		session, err = ts.Auth.VerifyTwoFactorLogin(ctx, pending, code, meta)
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)

		_, err = ts.Auth.VerifyTwoFactorLogin(ctx, pending, code, meta)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("should accept each backup code once", func(t *testing.T) {
		_, pending, _ := ts.Auth.Login(ctx, "ada", "password1", meta)
		_, err := ts.Auth.VerifyTwoFactorLogin(ctx, pending, setup.BackupCodes[0], meta)
		require.NoError(t, err)

		_, pending, _ = ts.Auth.Login(ctx, "ada", "password1", meta)
		_, err = ts.Auth.VerifyTwoFactorLogin(ctx, pending, setup.BackupCodes[0], meta)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("should turn off with the password", func(t *testing.T) {
		assert.ErrorIs(t, ts.Auth.DisableTwoFactor(ctx, u.ID, "wrong"), ErrInvalidPassword)
		require.NoError(t, ts.Auth.DisableTwoFactor(ctx, u.ID, "password1"))

		_, _, err := ts.Auth.Login(ctx, "ada", "password1", meta)
		assert.NoError(t, err)
	})
}

func TestAPIKeys(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)
	u, _ := register(t, ts, "ada")

	key, err := ts.Auth.CreateAPIKey(ctx, u.ID, "ci", 30)
	require.NoError(t, err)
	assert.Regexp(t, `^rr_`, key.Key)
	require.NotNil(t, key.ExpiresAt)

	t.Run("should authenticate with the plaintext key", func(t *testing.T) {
		got, err := ts.Auth.AuthenticateAPIKey(ctx, key.Key)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = ts.Auth.AuthenticateAPIKey(ctx, "rr_unknown")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("should list keys without secrets", func(t *testing.T) {
		keys, err := ts.Auth.ListAPIKeys(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.NotEqual(t, key.Key, keys[0].Hash)
		assert.NotNil(t, keys[0].LastUsedAt)
	})

	t.Run("should reject expired keys", func(t *testing.T) {
		ts.Auth.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
		defer func() { ts.Auth.now = time.Now }()
		_, err := ts.Auth.AuthenticateAPIKey(ctx, key.Key)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("should delete only own keys", func(t *testing.T) {
		other, _ := register(t, ts, "bob")
		assert.ErrorIs(t, ts.Auth.DeleteAPIKey(ctx, other.ID, key.ID), ErrNotFound)
		require.NoError(t, ts.Auth.DeleteAPIKey(ctx, u.ID, key.ID))
		_, err := ts.Auth.AuthenticateAPIKey(ctx, key.Key)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

var resetLink = regexp.MustCompile(`token=(\S+)`)

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)
	_, session := register(t, ts, "ada")

	t.Run("should ignore unknown addresses", func(t *testing.T) {
		require.NoError(t, ts.Auth.RequestPasswordReset(ctx, "nobody@example.com"))
		assert.Empty(t, ts.Mail.sent)
	})

	require.NoError(t, ts.Auth.RequestPasswordReset(ctx, "ADA@example.com"))
	mail := ts.Mail.last()
	assert.Equal(t, "ada@example.com", mail.To)
	m := resetLink.FindStringSubmatch(mail.Body)
	require.Len(t, m, 2)
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)

	t.Run("should set the new password and sign out everywhere", func(t *testing.T) {
		require.NoError(t, ts.Auth.ResetPassword(ctx, token, "newpassword"))

		_, err := ts.Auth.Authenticate(ctx, session.Token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = ts.Auth.Login(ctx, "ada", "password1", meta)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = ts.Auth.Login(ctx, "ada", "newpassword", meta)
		assert.NoError(t, err)
	})

	t.Run("should not reuse a token", func(t *testing.T) {
		assert.ErrorIs(t, ts.Auth.ResetPassword(ctx, token, "another1"), ErrInvalidCode)
	})

	t.Run("should reject a short password", func(t *testing.T) {
		assert.ErrorIs(t, ts.Auth.ResetPassword(ctx, "whatever", "abc"), ErrInvalidInput)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	ts := setupServices(t)
	u, session := register(t, ts, "ada")
	_, err := ts.Resumes.Create(ctx, u.ID, &dtos.CreateResumeRequest{Name: "CV"})
	require.NoError(t, err)

	require.NoError(t, ts.Auth.DeleteAccount(ctx, u.ID))
	assert.Equal(t, []string{u.ID}, ts.Files.removed)

	_, err = ts.Auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	for _, m := range []any{&models.User{}, &models.Resume{}, &models.ResumeStatistics{}, &models.Account{}} {
		var count int64
		require.NoError(t, ts.DB.Model(m).Count(&count).Error)
		assert.Zero(t, count, "%T rows left", m)
	}

	assert.ErrorIs(t, ts.Auth.DeleteAccount(ctx, u.ID), ErrNotFound)
}

func TestOAuth(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer"}`)
		case "/user":
			fmt.Fprint(w, `{"id":42,"login":"Octo","email":"octo@example.com","name":"Octo Cat","avatar_url":"https://img"}`)
		}
	}))
	defer srv.Close()

	ts := setupServices(t)
	p := auth.NewGitHubProvider("id", "secret", "http://localhost:3000/api/v1/auth/oauth/github/callback")
	p.Config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.ProfileURL = srv.URL + "/user"
	ts.Auth.Providers[models.ProviderGitHub] = p

	start := func(t *testing.T) string {
		t.Helper()
		consent, state, err := ts.Auth.OAuthStart(ctx, models.ProviderGitHub)
		require.NoError(t, err)
		u, err := url.Parse(consent)
		require.NoError(t, err)
		require.Equal(t, state, u.Query().Get("state"))
		return state
	}

	t.Run("should list enabled providers", func(t *testing.T) {
		assert.Equal(t, []string{models.ProviderCredential, models.ProviderGitHub}, ts.Auth.ProviderNames())
	})

	t.Run("should reject unknown providers and states", func(t *testing.T) {
		_, _, err := ts.Auth.OAuthStart(ctx, "myspace")
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
		_, err = ts.Auth.OAuthCallback(ctx, models.ProviderGitHub, "forged", "forged", "code", meta)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("should reject a state started in another browser", func(t *testing.T) {
		attackerState := start(t)
		victimState := start(t)

		_, err := ts.Auth.OAuthCallback(ctx, models.ProviderGitHub, attackerState, victimState, "code", meta)
		assert.ErrorIs(t, err, ErrInvalidCode)
		_, err = ts.Auth.OAuthCallback(ctx, models.ProviderGitHub, attackerState, "", "code", meta)
		assert.ErrorIs(t, err, ErrInvalidCode)

		var users int64
		ts.DB.Model(&models.User{}).Count(&users)
		assert.Zero(t, users)
	})

	t.Run("should create a user on first sign in", func(t *testing.T) {
		state := start(t)
		session, err := ts.Auth.OAuthCallback(ctx, models.ProviderGitHub, state, state, "code", meta)
		require.NoError(t, err)

		u, err := ts.Auth.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, "octo", u.Username)
		assert.Equal(t, "octo@example.com", u.Email)
		assert.True(t, u.EmailVerified)
	})

	t.Run("should reuse the linked account", func(t *testing.T) {
		state := start(t)
		_, err := ts.Auth.OAuthCallback(ctx, models.ProviderGitHub, state, state, "code", meta)
		require.NoError(t, err)

		var users, accounts int64
		ts.DB.Model(&models.User{}).Count(&users)
		ts.DB.Model(&models.Account{}).Count(&accounts)
		assert.EqualValues(t, 1, users)
		assert.EqualValues(t, 1, accounts)
	})
}
