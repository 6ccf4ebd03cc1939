// Package handler serves the audit trail to administrators.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ger/backend/internal/audit/domain"
	"ger/backend/internal/identity/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Reader lists a user's audit entries, newest first.
type Reader interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}

// ErrorWriter renders a failed request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Handler serves GET /admin/audit. Callers mount it behind the admin guard.
type Handler struct {
	logs    Reader
	onError ErrorWriter
}

// NewHandler returns a Handler reading from logs.
func NewHandler(logs Reader, onError ErrorWriter) *Handler {
	return &Handler{logs: logs, onError: onError}
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Status    int       `json:"status"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	AuditLogs []auditLogResponse `json:"audit_logs"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

// ListAuditLogs returns one page of the trail for the user named by ?user_id=.
// limit defaults to 50 and may not exceed 200; offset defaults to 0.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		h.onError(w, r, fmt.Errorf("%w: user_id is required", service.ErrInputValidation))
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		h.onError(w, r, fmt.Errorf("%w: limit: %v", service.ErrInputValidation, err))
		return
	}
	offset, err := queryInt(q.Get("offset"), 0, 0, 1<<31-1)
	if err != nil {
		h.onError(w, r, fmt.Errorf("%w: offset: %v", service.ErrInputValidation, err))
		return
	}

	logs, err := h.logs.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.onError(w, r, fmt.Errorf("list audit logs: %w", err))
		return
	}
	resp := listResponse{AuditLogs: make([]auditLogResponse, 0, len(logs)), Limit: limit, Offset: offset}
	for _, l := range logs {
		resp.AuditLogs = append(resp.AuditLogs, auditLogResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Status:    l.Status,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func queryInt(raw string, def, lo, hi int64) (int32, error) {
	if raw == "" {
		return int32(def), nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return int32(n), nil
}
