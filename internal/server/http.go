// Package server assembles the HTTP router and its middleware chain.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ger/backend/internal/audit"
	audithandler "ger/backend/internal/audit/handler"
	healthhandler "ger/backend/internal/health/handler"
	identityhandler "ger/backend/internal/identity/handler"
	"ger/backend/internal/log"
	"ger/backend/internal/security"
	"ger/backend/internal/server/interceptors"
)

// Deps holds the services the router dispatches to.
type Deps struct {
	// Auth backs /auth/* and the guarded routes.
	Auth identityhandler.Authenticator
	// Headers names the token headers; zero values use interceptors.DefaultTokenHeaders.
	Headers interceptors.TokenHeaders
	// Audit records auth requests; nil disables auditing.
	Audit audit.AuditLogger
	// AuditLogs backs GET /admin/audit; nil leaves the route unmounted.
	AuditLogs audithandler.Reader
	// HealthChecks are pinged by GET /health (e.g. "postgres": *sql.DB). Nil entries are skipped.
	HealthChecks map[string]healthhandler.Pinger
}

// NewRouter returns the root handler.
//
// Route → handler mapping:
//   - POST /auth/signin, /auth/refresh, /auth/signout → internal/identity/handler
//   - GET  /auth/me, /admin/ping (guarded)            → internal/identity/handler
//   - GET  /admin/audit (admin)                       → internal/audit/handler
//   - GET  /health                                    → internal/health/handler
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(log.NewHandler(log.Logger))
	r.Use(log.RequestIDHandler("request_id"))
	r.Use(middleware.RealIP)
	r.Use(log.AccessHandler(log.AccessLog))
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/health", healthhandler.NewHandler(deps.HealthChecks))
	identity := identityhandler.NewHandler(deps.Auth, deps.Headers, deps.Audit)
	identity.Register(r)
	if deps.AuditLogs != nil {
		trail := audithandler.NewHandler(deps.AuditLogs, identityhandler.WriteError)
		r.With(identity.Guard(security.RoleAdmin)...).Get("/admin/audit", trail.ListAuditLogs)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":404,"error":"not found","message":"not found"}`))
	})

	return otelhttp.NewHandler(r, "ger-backend",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
