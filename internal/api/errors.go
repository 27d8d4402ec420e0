package api

import (
	"encoding/json"
	"net/http"
)

// Standard error codes for API responses.
const (
	// ErrCodeInvalidRequest indicates a malformed request body.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeNotFound indicates a resource was not found (or belongs to
	// someone else; the two are deliberately indistinguishable).
	ErrCodeNotFound = "not_found"

	// ErrCodeUnrecognizedStatus indicates the CDN reported a zone status
	// this service does not understand.
	ErrCodeUnrecognizedStatus = "unrecognized_zone_status"

	// ErrCodeProofRejected indicates a definitive payment rejection.
	// Retrying with the same proof cannot succeed.
	ErrCodeProofRejected = "proof_rejected"

	// ErrCodeGrantDeployFailed indicates the proof was consumed but the
	// allow rule could not be deployed.
	ErrCodeGrantDeployFailed = "grant_deploy_failed"

	// ErrCodeCollaboratorError indicates an upstream (CDN or chain node)
	// failure; the request may be retried.
	ErrCodeCollaboratorError = "collaborator_error"

	// ErrCodeInternalError indicates a server error.
	ErrCodeInternalError = "internal_error"
)

// APIError is the standard error response format for JSON APIs.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// WriteError writes a JSON error response with the given status code, error code, and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithHint(w, status, code, message, "")
}

// WriteErrorWithHint writes a JSON error response with an optional hint for resolving the error.
func WriteErrorWithHint(w http.ResponseWriter, status int, code, message, hint string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := APIError{
		Error:   code,
		Message: message,
		Hint:    hint,
	}
	// Encoding errors are not critical since headers are already sent
	//nolint:errcheck
	json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(v)
}
