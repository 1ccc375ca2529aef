package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultBatchSize = 1000

type legacyUser struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Picture          sql.NullString `db:"picture"`
	Username         string         `db:"username"`
	Email            string         `db:"email"`
	EmailVerified    bool           `db:"emailVerified"`
	TwoFactorEnabled bool           `db:"twoFactorEnabled"`
	CreatedAt        time.Time      `db:"createdAt"`
	UpdatedAt        time.Time      `db:"updatedAt"`
	Provider         string         `db:"provider"`
}

type legacySecrets struct {
	UserID               string         `db:"userId"`
	Password             sql.NullString `db:"password"`
	TwoFactorSecret      sql.NullString `db:"twoFactorSecret"`
	TwoFactorBackupCodes pq.StringArray `db:"twoFactorBackupCodes"`
	RefreshToken         sql.NullString `db:"refreshToken"`
}

type legacyResume struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Slug       string    `db:"slug"`
	Data       []byte    `db:"data"`
	Visibility string    `db:"visibility"`
	Locked     bool      `db:"locked"`
	UserID     string    `db:"userId"`
	CreatedAt  time.Time `db:"createdAt"`
	UpdatedAt  time.Time `db:"updatedAt"`
}

type legacyStatistics struct {
	ResumeID  string    `db:"resumeId"`
	Views     int64     `db:"views"`
	Downloads int64     `db:"downloads"`
	CreatedAt time.Time `db:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

// UserSummary counts the outcome of a user migration run.
type UserSummary struct {
	Users     int
	Accounts  int
	TwoFactor int
	Skipped   int
	Failed    int
}

// ResumeSummary counts the outcome of a resume migration run.
type ResumeSummary struct {
	Resumes    int
	Statistics int
	Skipped    int
	Failed     int
}

// Migrator copies users and resumes from the legacy database. Legacy user
// ids are mapped to new ids in a JSON file, so an interrupted run can be
// resumed and the resume migration can find the new owners.
type Migrator struct {
	Legacy    *sqlx.DB
	DB        *gorm.DB
	MapFile   string
	BatchSize int
	Log       *zap.Logger
}

func NewMigrator(legacyDB *sqlx.DB, db *gorm.DB, mapFile string, log *zap.Logger) *Migrator {
	return &Migrator{Legacy: legacyDB, DB: db, MapFile: mapFile, BatchSize: DefaultBatchSize, Log: log}
}

// LoadIDMap reads the legacy to new user id map. A missing file yields an
// empty map.
func LoadIDMap(path string) (map[string]string, error) {
	m := map[string]string{}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading id map: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing id map: %w", err)
	}
	return m, nil
}

// SaveIDMap writes the id map atomically.
func SaveIDMap(path string, m map[string]string) error {
	raw, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding id map: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".id-map-*")
	if err != nil {
		return fmt.Errorf("creating id map: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing id map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing id map: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func mapProvider(p string) string {
	switch p {
	case "email":
		return models.ProviderCredential
	case "google":
		return models.ProviderGoogle
	case "github":
		return models.ProviderGitHub
	default:
		return models.ProviderCustom
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (m *Migrator) batchSize() int {
	if m.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return m.BatchSize
}

// MigrateUsers copies users with their account and two-factor settings.
// Users whose email or username already exists are mapped to the existing
// user instead of being copied.
func (m *Migrator) MigrateUsers(ctx context.Context) (UserSummary, error) {
	var sum UserSummary
	start := time.Now()
	m.Log.Info("starting user migration")

	idMap, err := LoadIDMap(m.MapFile)
	if err != nil {
		return sum, err
	}

	processed := 0
	for offset := 0; ; {
		var users []legacyUser
		q := m.Legacy.Rebind(`SELECT id, name, picture, username, email, "emailVerified", "twoFactorEnabled", "createdAt", "updatedAt", provider
			FROM "User" ORDER BY id ASC LIMIT ? OFFSET ?`)
		if err := m.Legacy.SelectContext(ctx, &users, q, m.batchSize(), offset); err != nil {
			return sum, fmt.Errorf("fetching legacy users: %w", err)
		}
		m.Log.Info("fetched user batch", zap.Int("offset", offset), zap.Int("count", len(users)))
		if len(users) == 0 {
			break
		}

		secrets, err := m.secrets(ctx, users)
		if err != nil {
			return sum, err
		}

		for i, u := range users {
			index := processed + i + 1
			if _, ok := idMap[u.ID]; ok {
				m.Log.Info("skipping user, already migrated", zap.Int("index", index))
				sum.Skipped++
				continue
			}

			newUserID, created, err := m.migrateUser(ctx, u, secrets[u.ID], &sum)
			if err != nil {
				m.Log.Error("failed to migrate user", zap.Int("index", index), zap.Error(err))
				sum.Failed++
				continue
			}
			idMap[u.ID] = newUserID
			if created {
				m.Log.Info("migrated user", zap.Int("index", index))
			} else {
				m.Log.Info("skipping user, already exists in target", zap.Int("index", index))
				sum.Skipped++
			}
			if err := SaveIDMap(m.MapFile, idMap); err != nil {
				return sum, err
			}
		}

		offset += len(users)
		processed += len(users)
	}

	m.Log.Info("user migration complete",
		zap.Int("users_created", sum.Users),
		zap.Int("accounts_created", sum.Accounts),
		zap.Int("two_factor_created", sum.TwoFactor),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return sum, SaveIDMap(m.MapFile, idMap)
}

func (m *Migrator) secrets(ctx context.Context, users []legacyUser) (map[string]legacySecrets, error) {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	q, args, err := sqlx.In(`SELECT "userId", password, "twoFactorSecret", "twoFactorBackupCodes", "refreshToken"
		FROM "Secrets" WHERE "userId" IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building secrets query: %w", err)
	}
	var rows []legacySecrets
	if err := m.Legacy.SelectContext(ctx, &rows, m.Legacy.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("fetching legacy secrets: %w", err)
	}
	out := make(map[string]legacySecrets, len(rows))
	for _, s := range rows {
		out[s.UserID] = s
	}
	return out, nil
}

// migrateUser returns the id the legacy user maps to and whether a new
// user was created for it.
func (m *Migrator) migrateUser(ctx context.Context, u legacyUser, secrets legacySecrets, sum *UserSummary) (string, bool, error) {
	username := resume.ToUsername(u.Username)

	var existing models.User
	err := m.DB.WithContext(ctx).Where("email = ? OR username = ?", u.Email, username).First(&existing).Error
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("checking existing user: %w", err)
	}

	userID, err := newID()
	if err != nil {
		return "", false, err
	}
	err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := &models.User{
			Base:             models.Base{ID: userID, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt},
			Name:             u.Name,
			Email:            u.Email,
			Username:         username,
			DisplayUsername:  u.Username,
			Image:            u.Picture.String,
			EmailVerified:    u.EmailVerified,
			TwoFactorEnabled: u.TwoFactorEnabled && secrets.TwoFactorSecret.Valid,
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		provider := mapProvider(u.Provider)
		accountID := u.ID
		if provider == models.ProviderCredential {
			accountID = userID
		}
		account := &models.Account{
			Base:         models.Base{CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt},
			UserID:       userID,
			ProviderID:   provider,
			AccountID:    accountID,
			Password:     secrets.Password.String,
			RefreshToken: secrets.RefreshToken.String,
		}
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("creating account: %w", err)
		}

		if user.TwoFactorEnabled {
			codes := make([]string, len(secrets.TwoFactorBackupCodes))
			for i, c := range secrets.TwoFactorBackupCodes {
				codes[i] = auth.HashToken(c)
			}
			tf := &models.TwoFactor{
				Base:        models.Base{CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt},
				UserID:      userID,
				Secret:      secrets.TwoFactorSecret.String,
				BackupCodes: codes,
				Verified:    true,
			}
			if err := tx.Create(tf).Error; err != nil {
				return fmt.Errorf("creating two-factor: %w", err)
			}
			sum.TwoFactor++
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	sum.Users++
	sum.Accounts++
	return userID, true, nil
}

// MigrateResumes copies resumes of migrated users together with their
// statistics. Documents that cannot be converted are replaced by an empty
// resume.
func (m *Migrator) MigrateResumes(ctx context.Context) (ResumeSummary, error) {
	var sum ResumeSummary
	start := time.Now()
	m.Log.Info("starting resume migration")

	idMap, err := LoadIDMap(m.MapFile)
	if err != nil {
		return sum, err
	}

	processed := 0
	for offset := 0; ; {
		var rows []legacyResume
		q := m.Legacy.Rebind(`SELECT id, title, slug, data, visibility, locked, "userId", "createdAt", "updatedAt"
			FROM "Resume" ORDER BY id ASC LIMIT ? OFFSET ?`)
		if err := m.Legacy.SelectContext(ctx, &rows, q, m.batchSize(), offset); err != nil {
			return sum, fmt.Errorf("fetching legacy resumes: %w", err)
		}
		m.Log.Info("fetched resume batch", zap.Int("offset", offset), zap.Int("count", len(rows)))
		if len(rows) == 0 {
			break
		}

		stats, err := m.statistics(ctx, rows)
		if err != nil {
			return sum, err
		}

		for i, r := range rows {
			index := processed + i + 1
			userID, ok := idMap[r.UserID]
			if !ok {
				m.Log.Info("skipping resume, owner not migrated", zap.Int("index", index))
				sum.Skipped++
				continue
			}
			skip, err := m.resumeExists(ctx, userID, r.Slug)
			if err != nil {
				m.Log.Error("failed to migrate resume", zap.Int("index", index), zap.Error(err))
				sum.Failed++
				continue
			}
			if skip {
				m.Log.Info("skipping resume, owner missing or slug exists", zap.Int("index", index))
				sum.Skipped++
				continue
			}

			st, hasStats := stats[r.ID]
			if err := m.migrateResume(ctx, r, userID, st, hasStats); err != nil {
				m.Log.Error("failed to migrate resume", zap.Int("index", index), zap.Error(err))
				sum.Failed++
				continue
			}
			sum.Resumes++
			if hasStats {
				sum.Statistics++
			}
			m.Log.Info("migrated resume", zap.Int("index", index))
		}

		offset += len(rows)
		processed += len(rows)
	}

	m.Log.Info("resume migration complete",
		zap.Int("resumes_created", sum.Resumes),
		zap.Int("statistics_created", sum.Statistics),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return sum, nil
}

func (m *Migrator) statistics(ctx context.Context, rows []legacyResume) (map[string]legacyStatistics, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	q, args, err := sqlx.In(`SELECT "resumeId", views, downloads, "createdAt", "updatedAt"
		FROM "Statistics" WHERE "resumeId" IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building statistics query: %w", err)
	}
	var stats []legacyStatistics
	if err := m.Legacy.SelectContext(ctx, &stats, m.Legacy.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("fetching legacy statistics: %w", err)
	}
	out := make(map[string]legacyStatistics, len(stats))
	for _, s := range stats {
		out[s.ResumeID] = s
	}
	return out, nil
}

// resumeExists reports whether the resume should be skipped: the owner is
// missing from the target or already has a resume with this slug.
func (m *Migrator) resumeExists(ctx context.Context, userID, slug string) (bool, error) {
	db := m.DB.WithContext(ctx)
	var users int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return false, fmt.Errorf("checking owner: %w", err)
	}
	if users == 0 {
		return true, nil
	}
	var resumes int64
	if err := db.Model(&models.Resume{}).Where("user_id = ? AND slug = ?", userID, slug).Count(&resumes).Error; err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return resumes > 0, nil
}

func (m *Migrator) migrateResume(ctx context.Context, r legacyResume, userID string, st legacyStatistics, hasStats bool) error {
	data, err := ImportV4(r.Data)
	if err != nil {
		m.Log.Warn("failed to convert resume data, using an empty resume", zap.String("legacy_id", r.ID), zap.Error(err))
		data = resume.Default()
	}

	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := &models.Resume{
			Base:     models.Base{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
			Name:     r.Title,
			Slug:     r.Slug,
			Tags:     []string{},
			IsPublic: r.Visibility == "public",
			IsLocked: r.Locked,
			Data:     data,
			UserID:   userID,
		}
		if err := tx.Create(res).Error; err != nil {
			return fmt.Errorf("creating resume: %w", err)
		}

		stats := &models.ResumeStatistics{ResumeID: res.ID}
		if hasStats {
			stats.Base = models.Base{CreatedAt: st.CreatedAt, UpdatedAt: st.UpdatedAt}
			stats.Views = st.Views
			stats.Downloads = st.Downloads
		}
		if err := tx.Create(stats).Error; err != nil {
			return fmt.Errorf("creating statistics: %w", err)
		}
		return nil
	})
}
