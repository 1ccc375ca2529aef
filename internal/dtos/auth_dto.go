package dtos

import "time"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=64"`
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=64"`
}

// LoginRequest accepts an email address or a username as Identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type TwoFactorLoginRequest struct {
	PendingToken string `json:"pending_token" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type CodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=64"`
}

type CreateAPIKeyRequest struct {
	Name          string `json:"name" binding:"required,max=64"`
	ExpiresInDays int    `json:"expires_in_days" binding:"min=0,max=365"`
}

type ResumePasswordRequest struct {
	Username string `json:"username" binding:"required"`
	Slug     string `json:"slug" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TwoFactorSetupResponse struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

type APIKeyResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	ExpiresAt *time.Time `json:"expires_at"`
}
