// Package auth resolves owner identity from management API tokens.
// Token issuance is an external concern; this package only validates
// presented tokens and maps them to an owner id.
package auth

import (
	"context"
	"errors"

	"github.com/fenceline/botgate/internal/storage"
)

// Errors for authentication failures.
var (
	// ErrMissingToken indicates no API token was provided.
	ErrMissingToken = errors.New("auth: missing API token")
	// ErrInvalidToken indicates the API token is not valid.
	ErrInvalidToken = errors.New("auth: invalid API token")
)

// TokenStore is the storage contract the validator needs.
type TokenStore interface {
	ListOwnerTokens(ctx context.Context) ([]*storage.OwnerToken, error)
}

// Validator handles owner token validation.
type Validator struct {
	storage TokenStore
}

// NewValidator creates a new Validator.
func NewValidator(s TokenStore) *Validator {
	return &Validator{storage: s}
}

// ValidateToken checks a presented token and returns its record.
// Must iterate all tokens - bcrypt hashes are not comparable directly.
func (v *Validator) ValidateToken(ctx context.Context, token string) (*storage.OwnerToken, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	tokens, err := v.storage.ListOwnerTokens(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range tokens {
		if storage.VerifyToken(token, t.TokenHash) == nil {
			return t, nil
		}
	}

	return nil, ErrInvalidToken
}
