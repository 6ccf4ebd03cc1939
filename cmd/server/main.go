package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ger/backend/internal/audit"
	auditrepo "ger/backend/internal/audit/repository"
	"ger/backend/internal/config"
	"ger/backend/internal/db"
	healthhandler "ger/backend/internal/health/handler"
	"ger/backend/internal/identity/service"
	"ger/backend/internal/log"
	"ger/backend/internal/security"
	"ger/backend/internal/server"
	"ger/backend/internal/server/interceptors"
	sessionrepo "ger/backend/internal/session/repository"
	telemetryotel "ger/backend/internal/telemetry/otel"
	userrepo "ger/backend/internal/user/repository"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("config: LOG_LEVEL")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()

	keys, err := security.LoadKeyMaterial(security.KeySources{
		AccessPrivate:  cfg.AccessTokenPrivateKey,
		AccessPublic:   cfg.AccessTokenPublicKey,
		RefreshPrivate: cfg.RefreshTokenPrivateKey,
		RefreshPublic:  cfg.RefreshTokenPublicKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("keys")
	}
	if cfg.RefreshTokenPrivateKey == "" {
		log.Warn(ctx).Msg("REFRESH_TOKEN_PRIVATE_KEY is not set; refresh tokens are signed with the access key pair")
	}
	codec, err := security.NewTokenCodec(keys, cfg.JWTAudience)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer database.Close()

	healthChecks := map[string]healthhandler.Pinger{"postgres": database}
	sessions, closeSessions, err := openSessionStore(cfg, database, healthChecks)
	if err != nil {
		log.Fatal().Err(err).Msg("session store")
	}
	defer closeSessions()

	auth := service.NewAuthenticator(
		userrepo.NewPostgresRepository(database),
		sessions,
		security.NewHasher(cfg.BcryptCost),
		codec,
		service.Config{AccessTTL: cfg.AccessTTL(), RefreshTTL: cfg.RefreshTTL()},
		service.WithEventEmitter(providers.Events),
		service.WithMetrics(providers.Metrics),
	)

	auditLogs := auditrepo.NewPostgresRepository(database)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Auth: auth,
			Headers: interceptors.TokenHeaders{
				Access:  cfg.AccessTokenHeader,
				Refresh: cfg.RefreshTokenHeader,
			},
			Audit:        audit.NewLogger(auditLogs),
			AuditLogs:    auditLogs,
			HealthChecks: healthChecks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(ctx).Str("addr", cfg.HTTPAddr).Str("session_store", cfg.SessionStore).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info(context.Background()).Msg("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx).Err(err).Msg("HTTP server shutdown")
	}
	_ = providers.Shutdown(shutdownCtx)
	log.Info(shutdownCtx).Msg("HTTP server stopped")
}

// openSessionStore builds the configured store and registers its health check.
func openSessionStore(cfg *config.Config, database *sql.DB, checks map[string]healthhandler.Pinger) (service.SessionStore, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		checks["redis"] = healthhandler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		store := sessionrepo.NewRedisStore(client, cfg.SessionKeyPrefix, cfg.RefreshTTL())
		return store, func() { _ = client.Close() }, nil
	case config.SessionStoreMemory:
		log.Warn(context.Background()).Msg("session store: memory; sessions are lost on restart")
		return sessionrepo.NewMemoryStore(), func() {}, nil
	default:
		return sessionrepo.NewPostgresStore(database), func() {}, nil
	}
}
