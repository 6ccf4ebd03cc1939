package interceptors

import (
	"context"

	"ger/backend/internal/security"
)

type contextKey struct{ name string }

var claimsKey = contextKey{"access_claims"}

// WithClaims returns a context carrying the verified access claims of the caller.
// Handlers read them via GetClaims; the audit trail reads GetUserID.
func WithClaims(ctx context.Context, claims security.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the access claims from context and true if set.
func GetClaims(ctx context.Context) (security.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(security.AccessClaims)
	return c, ok
}

// GetUserID returns the caller's user id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	c, ok := GetClaims(ctx)
	return c.UserID, ok
}
