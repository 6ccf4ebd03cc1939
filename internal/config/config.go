// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends accepted by SESSION_STORE.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :5155).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. Users always live in Postgres, so the server, migrate and seed commands require it.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the redis:// URL; required when SessionStore is redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionStore selects where session rows live: postgres, redis or memory.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// SessionKeyPrefix namespaces session keys in Redis.
	SessionKeyPrefix string `mapstructure:"SESSION_KEY_PREFIX"`

	// AccessTokenPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	AccessTokenPrivateKey string `mapstructure:"ACCESS_TOKEN_PRIVATE_KEY"`
	AccessTokenPublicKey  string `mapstructure:"ACCESS_TOKEN_PUBLIC_KEY"`
	// RefreshTokenPrivateKey and RefreshTokenPublicKey default to the access pair when both are empty.
	RefreshTokenPrivateKey string `mapstructure:"REFRESH_TOKEN_PRIVATE_KEY"`
	RefreshTokenPublicKey  string `mapstructure:"REFRESH_TOKEN_PUBLIC_KEY"`
	// JWTAudience is the aud claim (e.g. "ger.com").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// AccessTokenHeader and RefreshTokenHeader name the headers that carry the token pair.
	AccessTokenHeader  string `mapstructure:"ACCESS_TOKEN_HEADER"`
	RefreshTokenHeader string `mapstructure:"REFRESH_TOKEN_HEADER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint enables trace/metric/log export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5155")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_STORE", SessionStorePostgres)
	v.SetDefault("SESSION_KEY_PREFIX", "ger:session")
	v.SetDefault("ACCESS_TOKEN_PRIVATE_KEY", "")
	v.SetDefault("ACCESS_TOKEN_PUBLIC_KEY", "")
	v.SetDefault("REFRESH_TOKEN_PRIVATE_KEY", "")
	v.SetDefault("REFRESH_TOKEN_PUBLIC_KEY", "")
	v.SetDefault("JWT_AUDIENCE", "ger.com")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("ACCESS_TOKEN_HEADER", "x-access-token")
	v.SetDefault("REFRESH_TOKEN_HEADER", "x-refresh-token")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "ger-backend")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTAudience == "" {
		return nil, errors.New("config: JWT_AUDIENCE must be set")
	}

	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("config: SESSION_STORE must be postgres, redis or memory, got %q", cfg.SessionStore)
	}
	if cfg.SessionStore == SessionStoreMemory && cfg.Env == "production" {
		return nil, errors.New("config: SESSION_STORE=memory must not be used when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if err := checkTTL("JWT_ACCESS_TTL", cfg.JWTAccessTTL); err != nil {
		return nil, err
	}
	if err := checkTTL("JWT_REFRESH_TTL", cfg.JWTRefreshTTL); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func checkTTL(key, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: %s must be a duration such as 15m: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("config: %s must be positive, got %s", key, raw)
	}
	return nil
}

// AccessTTL parses JWTAccessTTL, which Load has validated. Returns 15m on a Config not built by Load.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL, which Load has validated. Returns 168h on a Config not built by Load.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}
