// Package supabase is a REST client for the hosted Supabase backend:
// GoTrue auth, PostgREST database access and object storage.
package supabase

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	// URL is the project URL, e.g. https://xxx.supabase.co
	URL string
	// AnonKey is the public API key sent with every request.
	AnonKey string
	// ServiceKey is the service role key for operations that bypass RLS.
	ServiceKey string
	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client
	// Timeout for requests when HTTPClient is not supplied.
	Timeout time.Duration
}

// User represents an auth user as returned by GoTrue.
type User struct {
	ID           string                 `json:"id"`
	Aud          string                 `json:"aud,omitempty"`
	Role         string                 `json:"role,omitempty"`
	Email        string                 `json:"email"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Session is an issued auth session.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// UploadOptions control storage uploads.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// CodeRowNotFound is the PostgREST code returned when a query shaped with
// Single() matches no rows.
const CodeRowNotFound = "PGRST116"

// Error is an API error returned by the hosted backend.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// IsNotFound reports whether err is a row-not-found failure.
func IsNotFound(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeRowNotFound || se.StatusCode == http.StatusNotFound
	}
	return false
}

// parseError decodes an error response body, tolerating the different
// shapes GoTrue, PostgREST and Storage produce.
func parseError(body []byte, statusCode int) error {
	var raw struct {
		Code             json.RawMessage `json:"code"`
		Message          string          `json:"message"`
		Details          string          `json:"details"`
		Hint             string          `json:"hint"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Msg              string          `json:"msg"`
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return &Error{Code: "unknown", Message: string(body), StatusCode: statusCode}
	}

	msg := raw.Message
	if msg == "" {
		msg = raw.Error
	}
	if msg == "" {
		msg = raw.ErrorDescription
	}
	if msg == "" {
		msg = raw.Msg
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	// GoTrue returns numeric codes, PostgREST returns strings.
	var code string
	if len(raw.Code) > 0 {
		if err := json.Unmarshal(raw.Code, &code); err != nil {
			code = string(raw.Code)
		}
	}

	return &Error{
		Code:       code,
		Message:    msg,
		Details:    raw.Details,
		Hint:       raw.Hint,
		StatusCode: statusCode,
	}
}
