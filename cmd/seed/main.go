// seed inserts development users for local testing, one per role.
// Idempotent: users whose username or email already exists are skipped.
package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ger/backend/internal/config"
	"ger/backend/internal/db"
	"ger/backend/internal/log"
	"ger/backend/internal/security"
	"ger/backend/internal/user/domain"
	userrepo "ger/backend/internal/user/repository"
)

const devPassword = "password123"

var devUsers = []domain.User{
	{Username: "dev-admin", Email: "admin@example.com", Role: string(security.RoleAdmin)},
	{Username: "dev-professor", Email: "professor@example.com", Role: string(security.RoleProfessor)},
	{Username: "dev-student", Email: "student@example.com", Role: string(security.RoleStudent)},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	passwordHash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}

	users := userrepo.NewPostgresRepository(conn)
	for _, u := range devUsers {
		u.ID = uuid.NewString()
		u.PasswordHash = passwordHash
		err := users.Create(ctx, &u)
		switch {
		case errors.Is(err, userrepo.ErrDuplicate):
			log.Info(ctx).Str("username", u.Username).Msg("seed: user exists, skipping")
		case err != nil:
			log.Fatal().Err(err).Str("username", u.Username).Msg("seed: create user")
		default:
			log.Info(ctx).Str("username", u.Username).Str("role", u.Role).Msg("seed: created user")
		}
	}
}
