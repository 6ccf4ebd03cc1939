package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"ger/backend/internal/user/domain"
)

const (
	selectCredentialsSQL = `SELECT user_id, user_password, user_role
FROM users WHERE user_username = $1 OR user_email = $1
LIMIT 1`

	insertUserSQL = `INSERT INTO users (user_id, user_username, user_email, user_password, user_role)
VALUES ($1, $2, $3, $4, $5)
RETURNING user_created_timestamp`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCredentials returns the id, password hash and role of the matching user, or ErrNotFound.
func (r *PostgresRepository) GetCredentials(ctx context.Context, usernameOrEmail string) (*domain.Credentials, error) {
	c, err := scanCredentials(r.db.QueryRowContext(ctx, selectCredentialsSQL, usernameOrEmail))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return c, nil
}

// Create persists u. The user must have ID set; CreatedAt is filled from the database.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	err := r.db.QueryRowContext(ctx, insertUserSQL, u.ID, u.Username, u.Email, u.PasswordHash, u.Role).
		Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredentials(row rowScanner) (*domain.Credentials, error) {
	var c domain.Credentials
	if err := row.Scan(&c.UserID, &c.PasswordHash, &c.Role); err != nil {
		return nil, err
	}
	return &c, nil
}
