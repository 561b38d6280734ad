// Package httputil provides the JSON request/response helpers shared by
// all HTTP handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/debtdesk/debtdesk/internal/errors"
	"github.com/debtdesk/debtdesk/internal/logging"
)

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error code, message and optional details.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteErrorResponse writes a structured error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, ErrorEnvelope{Error: ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// WriteServiceError writes err as an error envelope, mapping unknown errors
// to a 500 internal error.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("unexpected error", err)
	}
	WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// DecodeJSON decodes the request body into v. On failure it writes a 400
// response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, string(errors.CodeBadRequest), message, nil)
}

// Unauthorized writes a 401 error.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	WriteErrorResponse(w, http.StatusUnauthorized, string(errors.CodeUnauthorized), message, nil)
}

// Forbidden writes a 403 error.
func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "insufficient permissions"
	}
	WriteErrorResponse(w, http.StatusForbidden, string(errors.CodeForbidden), message, nil)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusNotFound, string(errors.CodeNotFound), message, nil)
}

// InternalError writes a 500 error.
func InternalError(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusInternalServerError, string(errors.CodeInternal), message, nil)
}

// RequireUserID extracts the authenticated user ID from the request
// context. When absent it writes a 401 response and returns ok=false.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "")
		return "", false
	}
	return userID, true
}
