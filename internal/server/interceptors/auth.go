package interceptors

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ger/backend/internal/identity/service"
	"ger/backend/internal/log"
	"ger/backend/internal/security"
)

// Verifier checks a presented token pair and returns the caller's access claims.
type Verifier interface {
	Verify(ctx context.Context, presented service.TokenPair) (security.AccessClaims, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// TokenHeaders names the request/response headers that carry the token pair.
type TokenHeaders struct {
	Access  string
	Refresh string
}

// DefaultTokenHeaders are the header names used when none are configured.
var DefaultTokenHeaders = TokenHeaders{Access: "x-access-token", Refresh: "x-refresh-token"}

// Read returns the token pair presented on r. Missing headers yield empty strings.
func (h TokenHeaders) Read(r *http.Request) service.TokenPair {
	return service.TokenPair{
		AccessToken:  strings.TrimSpace(r.Header.Get(h.Access)),
		RefreshToken: strings.TrimSpace(r.Header.Get(h.Refresh)),
	}
}

// Write sets both token headers on the response.
func (h TokenHeaders) Write(w http.ResponseWriter, pair service.TokenPair) {
	w.Header().Set(h.Access, pair.AccessToken)
	w.Header().Set(h.Refresh, pair.RefreshToken)
}

// Authenticate returns middleware that verifies the token pair on every request and
// stores the resulting claims in the request context. Rejections are rendered by onError
// and the next handler is not called.
func Authenticate(v Verifier, headers TokenHeaders, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(r.Context(), headers.Read(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := log.WithContext(WithClaims(r.Context(), claims), func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", claims.UserID).Str("session_id", claims.SessionID)
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
