package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/config"
	"github.com/justsurfingit/resume-builder/internal/database"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	u := &models.User{Name: username, Email: username + "@example.com", Username: username, DisplayUsername: username}
	require.NoError(t, db.Create(u).Error)
	return u
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeFiles struct {
	removed []string
}

func (f *fakeFiles) DeleteUserFiles(ctx context.Context, userID string) error {
	f.removed = append(f.removed, userID)
	return nil
}

type testServices struct {
	DB      *gorm.DB
	Resumes *ResumeService
	Auth    *AuthService
	Mail    *fakeMailer
	Files   *fakeFiles
}

func setupServices(t *testing.T) *testServices {
	t.Helper()

	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.App.URL = "http://localhost:3000"
	cfg.App.Secret = testSecret

	grants := auth.NewSigner(testSecret)
	mail := &fakeMailer{}
	files := &fakeFiles{}
	return &testServices{
		DB:      db,
		Resumes: NewResumeService(db, grants, zap.NewNop()),
		Auth:    NewAuthService(db, cfg, mail, files, grants, zap.NewNop()),
		Mail:    mail,
		Files:   files,
	}
}
