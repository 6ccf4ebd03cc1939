package domain

import "time"

// AuditLog represents one audited request against the auth API.
type AuditLog struct {
	ID       string
	UserID   string
	Action   string
	Resource string
	IP       string
	// Status is the HTTP status the request finished with.
	Status    int
	Metadata  string
	CreatedAt time.Time
}
