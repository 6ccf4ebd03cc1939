package repository

import (
	"context"

	"ger/backend/internal/audit/domain"
)

// Repository persists audit log entries. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
