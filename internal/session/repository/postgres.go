package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"ger/backend/internal/session/domain"
)

const uniqueViolation = "23505"

const (
	insertSessionSQL = `INSERT INTO user_sessions (user_session_id, user_session_user_id, user_session_refresh_token)
VALUES ($1, $2, $3)`

	selectSessionSQL = `SELECT user_session_id, user_session_user_id, user_session_refresh_token, user_session_created_at
FROM user_sessions WHERE user_session_id = $1`

	// replaceRefreshTokenSQL swaps the token only when it still matches $2 and reports
	// whether the row existed, so not-found and conflict are told apart in one statement.
	replaceRefreshTokenSQL = `WITH current AS (
	SELECT 1 FROM user_sessions WHERE user_session_id = $1
), swapped AS (
	UPDATE user_sessions SET user_session_refresh_token = $3
	WHERE user_session_id = $1 AND user_session_refresh_token = $2
	RETURNING 1
)
SELECT (SELECT count(*) FROM current), (SELECT count(*) FROM swapped)`

	deleteSessionsSQL = `DELETE FROM user_sessions WHERE user_session_id = ANY($1)`
)

// PostgresStore is a Store backed by the user_sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store that uses the given db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new session row. A duplicate id yields ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, id, userID, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, insertSessionSQL, id, userID, refreshToken)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Fetch returns the session for id, or ErrNotFound.
func (s *PostgresStore) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, selectSessionSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	return sess, nil
}

// ReplaceRefreshToken performs the rotation compare-and-swap.
func (s *PostgresStore) ReplaceRefreshToken(ctx context.Context, id, expected, next string) error {
	var found, swapped int
	if err := s.db.QueryRowContext(ctx, replaceRefreshTokenSQL, id, expected, next).Scan(&found, &swapped); err != nil {
		return fmt.Errorf("replace refresh token: %w", err)
	}
	switch {
	case swapped == 1:
		return nil
	case found == 0:
		return ErrNotFound
	default:
		return ErrConflict
	}
}

// Delete removes every listed session in one statement.
func (s *PostgresStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, deleteSessionsSQL, ids); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.CreatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}
