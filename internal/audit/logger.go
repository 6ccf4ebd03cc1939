// Package audit records an append-only trail of auth API requests.
package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"ger/backend/internal/audit/domain"
	auditrepo "ger/backend/internal/audit/repository"
	"ger/backend/internal/log"
	"ger/backend/internal/server/interceptors"
)

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged
// and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, entry *domain.AuditLog)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. A nil repo discards events.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// LogEvent fills ID and CreatedAt when unset and writes the entry.
func (l *Logger) LogEvent(ctx context.Context, entry *domain.AuditLog) {
	if l == nil || l.repo == nil || entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if entry.IP == "" {
		entry.IP = "unknown"
	}
	// The request may already be finished; the audit row must still land.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn(ctx).Err(err).Str("action", entry.Action).Str("resource", entry.Resource).Msg("audit: failed to log event")
	}
}

type subjectKey struct{}

type subject struct {
	userID string
}

// Middleware audits every request that passes through it, including requests rejected
// further down the chain. Mount it ahead of interceptors.Authenticate and put Attribute
// after Authenticate so the entry names the verified caller.
func Middleware(l AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subj := &subject{}
			r = r.WithContext(context.WithValue(r.Context(), subjectKey{}, subj))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			userID := subj.userID
			if userID == "" {
				userID, _ = interceptors.GetUserID(r.Context())
			}
			ar := ParseRoute(r.Method, r.URL.Path)
			l.LogEvent(r.Context(), &domain.AuditLog{
				UserID:   userID,
				Action:   ar.Action,
				Resource: ar.Resource,
				IP:       clientIP(r),
				Status:   status,
				Metadata: http.StatusText(status),
			})
		})
	}
}

// Attribute copies the authenticated user id onto the entry of the enclosing Middleware.
func Attribute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subj, ok := r.Context().Value(subjectKey{}).(*subject); ok {
			subj.userID, _ = interceptors.GetUserID(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. middleware.RealIP upstream rewrites it from
// X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
