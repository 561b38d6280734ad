// Package errors defines the service error taxonomy. Every failure that
// crosses the HTTP boundary is a ServiceError with a stable code and an
// HTTP status; hosted-store errors keep their original message verbatim.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category.
type ErrorCode string

const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeForbidden         ErrorCode = "forbidden"
	CodeNotFound          ErrorCode = "not_found"
	CodeValidation        ErrorCode = "validation_failed"
	CodeInvalidToken      ErrorCode = "invalid_token"
	CodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	CodeUpstream          ErrorCode = "upstream_error"
	CodeInternal          ErrorCode = "internal_error"
)

// ServiceError is an error with an HTTP status and structured details.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// WithDetails attaches a key/value pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError with an explicit code and status.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// BadRequest builds a 400 error.
func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

// Validation builds a 400 error for input that failed a local check.
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Unauthorized builds a 401 error.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden builds a 403 error.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient permissions"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound builds a 404 error.
func NotFound(message string) *ServiceError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// InvalidToken builds a 401 error wrapping a token validation failure.
func InvalidToken(cause error) *ServiceError {
	e := New(CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized)
	e.cause = cause
	return e
}

// RateLimitExceeded builds a 429 error.
func RateLimitExceeded(limit int, window string) *ServiceError {
	e := New(CodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests)
	return e.WithDetails("limit", limit).WithDetails("window", window)
}

// Upstream wraps an error returned by the hosted backend, keeping its
// message verbatim for the caller.
func Upstream(message string, cause error) *ServiceError {
	e := New(CodeUpstream, message, http.StatusBadGateway)
	e.cause = cause
	return e
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	e := New(CodeInternal, message, http.StatusInternalServerError)
	e.cause = cause
	return e
}

// GetServiceError returns err as a *ServiceError if it is one (directly or
// wrapped), or nil otherwise.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
