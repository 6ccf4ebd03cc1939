package domain

import "time"

// Session is the persisted record backing a refresh token. RefreshToken holds the
// signed token string currently valid for the session; rotation replaces it in place.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	CreatedAt    time.Time
}
