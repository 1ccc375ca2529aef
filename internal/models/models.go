package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"gorm.io/gorm"
)

// Account providers.
const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
	ProviderGitHub     = "github"
	ProviderCustom     = "custom"
)

// Base holds the string primary key shared by every model. IDs are
// time-ordered UUIDs assigned on create.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id.String()
	}
	return nil
}

type User struct {
	Base

	Name             string `gorm:"not null" json:"name"`
	Email            string `gorm:"uniqueIndex;not null" json:"email"`
	Username         string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayUsername  string `json:"display_username"`
	Image            string `json:"image"`
	EmailVerified    bool   `gorm:"not null;default:false" json:"email_verified"`
	TwoFactorEnabled bool   `gorm:"not null;default:false" json:"two_factor_enabled"`
}

// Account links a user to a way of signing in. Credential accounts carry
// the bcrypt password hash, social accounts the provider's user id.
type Account struct {
	Base

	UserID       string `gorm:"index;not null" json:"user_id"`
	ProviderID   string `gorm:"uniqueIndex:idx_account_provider;not null" json:"provider_id"`
	AccountID    string `gorm:"uniqueIndex:idx_account_provider;not null" json:"account_id"`
	Password     string `json:"-"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

type Session struct {
	Base

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

type TwoFactor struct {
	Base

	UserID      string   `gorm:"uniqueIndex;not null" json:"user_id"`
	Secret      string   `gorm:"not null" json:"-"`
	BackupCodes []string `gorm:"type:text;serializer:json" json:"-"`
	Verified    bool     `gorm:"not null;default:false" json:"verified"`
}

type APIKey struct {
	Base

	UserID     string     `gorm:"index;not null" json:"user_id"`
	Name       string     `gorm:"not null" json:"name"`
	Prefix     string     `gorm:"not null" json:"prefix"`
	Hash       string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// Verification stores short-lived single-use values such as password
// reset tokens, pending two-factor logins and OAuth states. Identifier
// carries the purpose prefix and the hashed token.
type Verification struct {
	Base

	Identifier string    `gorm:"uniqueIndex;not null"`
	Value      string    `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
}

type Resume struct {
	Base

	Name     string             `gorm:"not null" json:"name"`
	Slug     string             `gorm:"uniqueIndex:idx_resume_user_slug;not null" json:"slug"`
	Tags     []string           `gorm:"type:text;serializer:json" json:"tags"`
	IsPublic bool               `gorm:"not null;default:false" json:"is_public"`
	IsLocked bool               `gorm:"not null;default:false" json:"is_locked"`
	Password *string            `json:"-"`
	Data     *resume.ResumeData `gorm:"type:text;not null;serializer:resume" json:"data,omitempty"`
	UserID   string             `gorm:"uniqueIndex:idx_resume_user_slug;index;not null" json:"user_id"`

	HasPassword bool `gorm:"-" json:"has_password"`
}

func (r *Resume) AfterFind(tx *gorm.DB) error {
	r.HasPassword = r.Password != nil
	return nil
}

func (r *Resume) AfterSave(tx *gorm.DB) error {
	r.HasPassword = r.Password != nil
	return nil
}

type ResumeStatistics struct {
	Base

	ResumeID         string     `gorm:"uniqueIndex;not null" json:"resume_id"`
	Views            int64      `gorm:"not null;default:0" json:"views"`
	Downloads        int64      `gorm:"not null;default:0" json:"downloads"`
	LastViewedAt     *time.Time `json:"last_viewed_at"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at"`
}

func (ResumeStatistics) TableName() string { return "resume_statistics" }

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Account{},
		&Session{},
		&TwoFactor{},
		&APIKey{},
		&Verification{},
		&Resume{},
		&ResumeStatistics{},
	}
}
