// Package client is a typed HTTP client for the resume API, plus the
// draft store a builder uses to keep local edits and server state in sync.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justsurfingit/resume-builder/pkg/resume"
)

// Resume mirrors the JSON the API returns for a resume.
type Resume struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Tags        []string           `json:"tags"`
	IsPublic    bool               `json:"is_public"`
	IsLocked    bool               `json:"is_locked"`
	HasPassword bool               `json:"has_password"`
	UserID      string             `json:"user_id"`
	Data        *resume.ResumeData `json:"data,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned status %d (%s): %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the API at baseURL (e.g. "https://rx.example.com").
// token is a session token or an API key; API keys start with "rr_".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) GetResume(ctx context.Context, id string) (*Resume, error) {
	var r Resume
	if err := c.do(ctx, http.MethodGet, "/resumes/"+id, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateResumeData replaces the resume's document with data.
func (c *Client) UpdateResumeData(ctx context.Context, id string, data *resume.ResumeData) (*Resume, error) {
	body, err := resume.Marshal(data)
	if err != nil {
		return nil, err
	}
	return c.putData(ctx, id, body)
}

func (c *Client) putData(ctx context.Context, id string, body []byte) (*Resume, error) {
	var r Resume
	if err := c.do(ctx, http.MethodPut, "/resumes/"+id+"/data", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(c.token, "rr_") {
		req.Header.Set("X-API-Key", c.token)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = string(raw)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
