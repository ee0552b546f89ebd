package helpers

import (
	"encoding/json"
	"net/http"
)

// Generic error codes. Booking rejections use their kind instead, for
// example "lesson_conflict".
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeTooMany       = "too_many_requests"
	ErrCodeInternalError = "internal_error"
)

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ConflictingID names the lesson or reservation a booking collided with.
	ConflictingID string `json:"conflicting_id,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

// APIResponse is the envelope of every JSON response. Exactly one of
// Data and Error is set.
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

func WriteJSONSuccess(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Data: data})
}

func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{Error: &APIError{Code: code, Message: message}})
}

func writeEnvelope(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
