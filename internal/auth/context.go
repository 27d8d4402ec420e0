package auth

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	ownerKey ctxKey = iota // stores the authenticated owner id (string)
)

// WithOwner adds the authenticated owner id to the context.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// OwnerFromContext retrieves the authenticated owner id from context.
// Returns empty string if the request was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	if v := ctx.Value(ownerKey); v != nil {
		if owner, ok := v.(string); ok {
			return owner
		}
	}
	return ""
}
