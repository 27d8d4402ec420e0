package cdn

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a zone or rule does not exist.
	ErrNotFound = errors.New("cdn: not found")

	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("cdn: unauthorized")
)

// APIError represents a structured error response from the CDN API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"ErrorKey"`
	Message    string `json:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdn: %s (status %d)", e.Message, e.StatusCode)
}

// Permanent reports whether retrying the same request cannot succeed.
// 4xx responses other than 429 are permanent; everything else is transient.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429
}
