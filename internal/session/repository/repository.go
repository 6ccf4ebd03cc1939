package repository

import (
	"context"
	"errors"

	"ger/backend/internal/session/domain"
)

var (
	// ErrNotFound is returned when no session exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Create for a duplicate id and by ReplaceRefreshToken
	// when the stored token no longer equals the expected one.
	ErrConflict = errors.New("session conflict")
)

// Store persists sessions keyed by session id. Every method is a single atomic
// operation against the backing store.
type Store interface {
	Create(ctx context.Context, id, userID, refreshToken string) error
	Fetch(ctx context.Context, id string) (*domain.Session, error)
	// ReplaceRefreshToken writes next only if the stored token still equals expected.
	ReplaceRefreshToken(ctx context.Context, id, expected, next string) error
	// Delete removes the given sessions. Missing ids are ignored.
	Delete(ctx context.Context, ids ...string) error
}
