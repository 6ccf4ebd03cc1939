package domain

import "time"

// EventType names a security-relevant occurrence in the auth flow.
type EventType string

const (
	EventSessionMismatch  EventType = "session_mismatch"
	EventRefreshReuse     EventType = "refresh_reuse"
	EventRefreshConflict  EventType = "refresh_conflict"
	EventRevocationFailed EventType = "revocation_failed"
)

// SecurityEvent is a residual security signal that operators should see even
// when the request itself was rejected normally.
type SecurityEvent struct {
	ID         string
	Type       EventType
	UserID     string
	SessionIDs []string
	Detail     string
	CreatedAt  time.Time
}
