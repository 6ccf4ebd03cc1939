package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ger/backend/internal/audit/domain"
)

const (
	insertAuditLogSQL = `INSERT INTO audit_logs (audit_log_id, audit_log_user_id, audit_log_action, audit_log_resource,
    audit_log_ip, audit_log_status, audit_log_metadata, audit_log_created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listAuditLogsByUserSQL = `SELECT audit_log_id, COALESCE(audit_log_user_id, ''), audit_log_action, audit_log_resource,
    audit_log_ip, audit_log_status, COALESCE(audit_log_metadata, ''), audit_log_created_at
FROM audit_logs WHERE audit_log_user_id = $1
ORDER BY audit_log_created_at DESC
LIMIT $2 OFFSET $3`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, insertAuditLogSQL,
		a.ID, uid, a.Action, a.Resource, a.IP, a.Status, meta, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByUser returns the user's audit logs, newest first, paginated by limit and offset.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, listAuditLogsByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Status, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
