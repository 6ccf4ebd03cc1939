package rbac

import (
	"context"
	"errors"
	"net/http"

	"ger/backend/internal/identity/service"
	"ger/backend/internal/security"
	"ger/backend/internal/server/interceptors"
)

// ErrForbidden is returned when the caller is authenticated but holds a different role.
var ErrForbidden = errors.New("forbidden")

// RequireRole ensures the caller is authenticated and holds exactly the required role.
// Returns the caller's claims on success; service.ErrUnauthorized when no verified claims
// are in context and ErrForbidden on a role mismatch.
func RequireRole(ctx context.Context, required security.Role) (security.AccessClaims, error) {
	claims, ok := interceptors.GetClaims(ctx)
	if !ok || claims.UserID == "" {
		return security.AccessClaims{}, service.ErrUnauthorized
	}
	if claims.Role != required {
		return security.AccessClaims{}, ErrForbidden
	}
	return claims, nil
}

// Middleware gates next behind RequireRole. It must run after interceptors.Authenticate.
func Middleware(required security.Role, onError interceptors.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireRole(r.Context(), required); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
