package services

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrResumeLocked        = errors.New("resume is locked")
	ErrSlugTaken           = errors.New("a resume with this slug already exists")
	ErrNeedPassword        = errors.New("resume is password protected")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidCredentials  = errors.New("invalid email, username or password")
	ErrTwoFactorRequired   = errors.New("two-factor authentication required")
	ErrInvalidCode         = errors.New("invalid or expired code")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrInvalidFile         = errors.New("invalid file")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrDisabled            = errors.New("feature is disabled")
	ErrInvalidInput        = errors.New("invalid input")
)

// NeedPasswordError carries the public path of the protected resume so the
// caller can ask for its password.
type NeedPasswordError struct {
	Username string
	Slug     string
}

func (e *NeedPasswordError) Error() string { return ErrNeedPassword.Error() }

func (e *NeedPasswordError) Unwrap() error { return ErrNeedPassword }
