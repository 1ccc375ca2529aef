package dtos

import (
	"encoding/json"
	"time"
)

// Nullable tells an absent key apart from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type CreateResumeRequest struct {
	Name           string   `json:"name" binding:"required,max=64"`
	Slug           string   `json:"slug" binding:"max=64"`
	Tags           []string `json:"tags" binding:"max=20,dive,max=32"`
	WithSampleData bool     `json:"with_sample_data"`
}

// UpdateResumeRequest changes resume attributes. Missing keys are left
// unchanged; "password": null removes the password.
type UpdateResumeRequest struct {
	Name     *string          `json:"name" binding:"omitempty,min=1,max=64"`
	Slug     *string          `json:"slug" binding:"omitempty,min=1,max=64"`
	Tags     *[]string        `json:"tags" binding:"omitempty,max=20,dive,max=32"`
	IsPublic *bool            `json:"is_public"`
	IsLocked *bool            `json:"is_locked"`
	Password Nullable[string] `json:"password"`
}

type DuplicateResumeRequest struct {
	Name *string   `json:"name" binding:"omitempty,min=1,max=64"`
	Slug *string   `json:"slug" binding:"omitempty,min=1,max=64"`
	Tags *[]string `json:"tags" binding:"omitempty,max=20,dive,max=32"`
}

type LockResumeRequest struct {
	IsLocked bool `json:"is_locked"`
}

type MoveSectionRequest struct {
	SectionID string `json:"section_id" binding:"required"`
	Page      int    `json:"page" binding:"min=0"`
	Column    string `json:"column" binding:"required,oneof=main sidebar"`
	// Index defaults to appending.
	Index *int `json:"index"`
}

type StatisticsRequest struct {
	Views     bool `json:"views"`
	Downloads bool `json:"downloads"`
}

type ResumeStatisticsResponse struct {
	Views            int64      `json:"views"`
	Downloads        int64      `json:"downloads"`
	LastViewedAt     *time.Time `json:"last_viewed_at"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at"`
	IsPublic         bool       `json:"is_public"`
}

type ImproveTextRequest struct {
	Action string `json:"action" binding:"required,oneof=improve fix-grammar change-tone"`
	Text   string `json:"text" binding:"required,max=10000"`
	Tone   string `json:"tone" binding:"omitempty,oneof=casual professional confident friendly"`
}

// Import formats.
const (
	ImportFormatV4   = "v4"
	ImportFormatJSON = "json"
)

// ImportResumeRequest creates a resume from an exported document. Format
// "v4" reads the previous major version's export, "json" the current one.
type ImportResumeRequest struct {
	Name   string          `json:"name" binding:"required,max=64"`
	Slug   string          `json:"slug" binding:"max=64"`
	Tags   []string        `json:"tags" binding:"max=20,dive,max=32"`
	Format string          `json:"format" binding:"omitempty,oneof=v4 json"`
	Data   json.RawMessage `json:"data" binding:"required"`
}
