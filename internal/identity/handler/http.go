// Package handler exposes the authentication endpoints over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ger/backend/internal/audit"
	"ger/backend/internal/identity/service"
	"ger/backend/internal/platform/rbac"
	"ger/backend/internal/security"
	"ger/backend/internal/server/interceptors"
)

const maxBodyBytes = 1 << 20

// Authenticator is the subset of service.Authenticator the handler needs.
type Authenticator interface {
	SignIn(ctx context.Context, usernameOrEmail, password string) (service.TokenPair, error)
	Verify(ctx context.Context, presented service.TokenPair) (security.AccessClaims, error)
	Refresh(ctx context.Context, presented service.TokenPair) (service.TokenPair, error)
	SignOut(ctx context.Context, presented service.TokenPair) error
}

// Handler serves sign-in, refresh, sign-out and the guarded identity endpoints.
type Handler struct {
	auth    Authenticator
	headers interceptors.TokenHeaders
	audit   audit.AuditLogger
}

// NewHandler returns a Handler. Zero-value header names fall back to interceptors.DefaultTokenHeaders.
// auditLogger may be nil; then no requests are audited.
func NewHandler(auth Authenticator, headers interceptors.TokenHeaders, auditLogger audit.AuditLogger) *Handler {
	if headers.Access == "" {
		headers.Access = interceptors.DefaultTokenHeaders.Access
	}
	if headers.Refresh == "" {
		headers.Refresh = interceptors.DefaultTokenHeaders.Refresh
	}
	return &Handler{auth: auth, headers: headers, audit: auditLogger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.With(h.audited).Post("/auth/signin", h.SignIn)
	r.With(h.audited).Post("/auth/refresh", h.Refresh)
	r.With(h.audited).Post("/auth/signout", h.SignOut)

	r.With(h.Guard()...).Get("/auth/me", h.Me)
	r.With(h.Guard(security.RoleAdmin)...).Get("/admin/ping", h.AdminPing)
}

// Guard returns the chain for a protected route: audit, verify the token pair, then
// require each of roles. Requests rejected at any step are still audited.
func (h *Handler) Guard(roles ...security.Role) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{
		h.audited,
		interceptors.Authenticate(h.auth, h.headers, WriteError),
	}
	if h.audit != nil {
		mws = append(mws, audit.Attribute)
	}
	for _, role := range roles {
		mws = append(mws, rbac.Middleware(role, WriteError))
	}
	return mws
}

func (h *Handler) audited(next http.Handler) http.Handler {
	if h.audit == nil {
		return next
	}
	return audit.Middleware(h.audit)(next)
}

type signInRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var completed = messageResponse{Message: "completed"}

// SignIn checks credentials and returns a fresh token pair in the response headers.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, service.ErrInputValidation)
		return
	}
	pair, err := h.auth.SignIn(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.headers.Write(w, pair)
	writeJSON(w, r, http.StatusOK, completed)
}

// Refresh rotates the presented pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.auth.Refresh(r.Context(), h.headers.Read(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.headers.Write(w, pair)
	writeJSON(w, r, http.StatusOK, completed)
}

// SignOut ends the session bound to the presented pair.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), h.headers.Read(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, completed)
}

type meResponse struct {
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
	Role      security.Role `json:"role"`
	ExpiresAt int64         `json:"expires_at"`
}

// Me returns the verified claims of the caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptors.GetClaims(r.Context())
	if !ok {
		WriteError(w, r, service.ErrUnauthorized)
		return
	}
	writeJSON(w, r, http.StatusOK, meResponse{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt,
	})
}

// AdminPing answers admins only.
func (h *Handler) AdminPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "pong"})
}
