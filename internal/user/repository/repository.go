package repository

import (
	"context"
	"errors"

	"ger/backend/internal/user/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned by Create when the username or email is taken.
	ErrDuplicate = errors.New("user already exists")
)

// Repository defines persistence for users.
type Repository interface {
	// GetCredentials looks a user up by username or email.
	GetCredentials(ctx context.Context, usernameOrEmail string) (*domain.Credentials, error)
	Create(ctx context.Context, u *domain.User) error
}
