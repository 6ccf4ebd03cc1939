package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ger/backend/internal/audit/domain"
	"ger/backend/internal/security"
	"ger/backend/internal/server/interceptors"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
	ctxErr    error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(context.Context, string, int32, int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_FillsDefaults(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo)
	logger.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	logger.LogEvent(context.Background(), &domain.AuditLog{UserID: "user-1", Action: "login", Resource: "session", Status: 200})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if !entry.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("created_at = %v", entry.CreatedAt)
	}
	if entry.IP != "unknown" {
		t.Errorf("ip = %q, want %q", entry.IP, "unknown")
	}
}

func TestLogger_LogEvent_BestEffort(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db error")}
	NewLogger(repo).LogEvent(context.Background(), &domain.AuditLog{Action: "login"})
	if len(repo.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(repo.entries))
	}

	// A nil repo or nil logger must not panic.
	NewLogger(nil).LogEvent(context.Background(), &domain.AuditLog{})
	var l *Logger
	l.LogEvent(context.Background(), &domain.AuditLog{})
}

func TestLogger_LogEvent_IgnoresCanceledRequest(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLogger(repo).LogEvent(ctx, &domain.AuditLog{Action: "logout"})
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.ctxErr != nil {
		t.Errorf("repository saw canceled context: %v", repo.ctxErr)
	}
}

func TestMiddleware(t *testing.T) {
	repo := &mockAuditRepo{}
	h := Middleware(NewLogger(repo))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req = req.WithContext(interceptors.WithClaims(req.Context(), security.AccessClaims{UserID: "user-7", Role: security.RoleStudent}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	got := repo.entries[0]
	if got.UserID != "user-7" || got.Action != "get" || got.Resource != "admin" {
		t.Errorf("entry = %+v", got)
	}
	if got.IP != "10.1.2.3" {
		t.Errorf("ip = %q, want %q", got.IP, "10.1.2.3")
	}
	if got.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", got.Status)
	}
}

func withCaller(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := interceptors.WithClaims(r.Context(), security.AccessClaims{UserID: userID, Role: security.RoleStudent})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestMiddleware_AttributeFromInnerChain(t *testing.T) {
	repo := &mockAuditRepo{}
	forbidden := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	h := Middleware(NewLogger(repo))(withCaller("user-9")(Attribute(forbidden)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/ping", nil))

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if got := repo.entries[0]; got.UserID != "user-9" || got.Status != http.StatusForbidden {
		t.Errorf("entry = %+v", got)
	}
}

func TestMiddleware_AuditsRejectionBeforeAuthentication(t *testing.T) {
	repo := &mockAuditRepo{}
	reject := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	h := Middleware(NewLogger(repo))(reject(Attribute(http.NotFoundHandler())))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	got := repo.entries[0]
	if got.UserID != "" || got.Status != http.StatusUnauthorized || got.Action != "get" || got.Resource != "identity" {
		t.Errorf("entry = %+v", got)
	}
}
