package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"ger/backend/internal/log"
	"ger/backend/internal/security"
	sessiondomain "ger/backend/internal/session/domain"
	sessionrepo "ger/backend/internal/session/repository"
	"ger/backend/internal/telemetry"
	telemetrydomain "ger/backend/internal/telemetry/domain"
	userdomain "ger/backend/internal/user/domain"
	userrepo "ger/backend/internal/user/repository"
)

// Sentinel errors for the authenticator; the HTTP handler maps them to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRefreshConflict    = errors.New("refresh token rotated concurrently")
	ErrInputValidation    = errors.New("input validation error")
	ErrUserNotFound       = errors.New("user not found")
	ErrIncorrectPassword  = errors.New("incorrect password")
)

// SessionIDLength is the length of generated session ids.
const SessionIDLength = 32

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair is the access and refresh token presented by, or returned to, a client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserRepo is the minimal user repository needed by the authenticator.
type UserRepo interface {
	GetCredentials(ctx context.Context, usernameOrEmail string) (*userdomain.Credentials, error)
}

// SessionStore is the minimal session store needed by the authenticator.
type SessionStore interface {
	Create(ctx context.Context, id, userID, refreshToken string) error
	Fetch(ctx context.Context, id string) (*sessiondomain.Session, error)
	ReplaceRefreshToken(ctx context.Context, id, expected, next string) error
	Delete(ctx context.Context, ids ...string) error
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(password, hash string) bool
}

// Metrics receives auth outcome counts.
type Metrics interface {
	SignIn(ctx context.Context, outcome string)
	Refresh(ctx context.Context, outcome string)
	Revocation(ctx context.Context, reason string, sessions int, failed bool)
	ReuseDetected(ctx context.Context)
}

// Config holds token lifetimes. Zero values fall back to the defaults.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithEventEmitter sets the sink for security events.
func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(a *Authenticator) { a.events = e }
}

// WithMetrics sets the auth metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// WithSessionIDGenerator overrides how new session ids are generated.
func WithSessionIDGenerator(gen func() (string, error)) Option {
	return func(a *Authenticator) { a.newSessionID = gen }
}

// Authenticator issues token pairs, verifies presented pairs, and rotates refresh tokens.
// It holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	users        UserRepo
	sessions     SessionStore
	passwords    PasswordVerifier
	codec        *security.TokenCodec
	accessTTL    time.Duration
	refreshTTL   time.Duration
	events       telemetry.EventEmitter
	metrics      Metrics
	newSessionID func() (string, error)
}

// NewAuthenticator returns an Authenticator with the given dependencies.
func NewAuthenticator(
	users UserRepo,
	sessions SessionStore,
	passwords PasswordVerifier,
	codec *security.TokenCodec,
	cfg Config,
	opts ...Option,
) *Authenticator {
	a := &Authenticator{
		users:        users,
		sessions:     sessions,
		passwords:    passwords,
		codec:        codec,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		metrics:      noopMetrics{},
		newSessionID: func() (string, error) { return gonanoid.New(SessionIDLength) },
	}
	if a.accessTTL <= 0 {
		a.accessTTL = DefaultAccessTTL
	}
	if a.refreshTTL <= 0 {
		a.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignIn checks the user's password and opens a new session. The session row is
// persisted before any token is returned.
func (a *Authenticator) SignIn(ctx context.Context, usernameOrEmail, password string) (TokenPair, error) {
	if strings.TrimSpace(usernameOrEmail) == "" || password == "" {
		a.metrics.SignIn(ctx, "invalid_input")
		return TokenPair{}, ErrInputValidation
	}
	creds, err := a.users.GetCredentials(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			a.metrics.SignIn(ctx, "user_not_found")
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, fmt.Errorf("sign in: %w", err)
	}
	if !a.passwords.Verify(password, creds.PasswordHash) {
		a.metrics.SignIn(ctx, "incorrect_password")
		return TokenPair{}, ErrIncorrectPassword
	}
	role, ok := security.ParseRole(creds.Role)
	if !ok {
		return TokenPair{}, fmt.Errorf("sign in: user %s has unknown role %q", creds.UserID, creds.Role)
	}

	sessionID, err := a.newSessionID()
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign in: session id: %w", err)
	}
	access := a.codec.NewAccessClaims(creds.UserID, sessionID, role, a.accessTTL)
	refresh := a.codec.NewRefreshClaims(creds.UserID, sessionID, a.refreshTTL)
	pair, err := a.sign(access, refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign in: %w", err)
	}
	if err := a.sessions.Create(ctx, sessionID, creds.UserID, pair.RefreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("sign in: create session: %w", err)
	}

	a.metrics.SignIn(ctx, "success")
	log.Info(ctx).Str("user_id", creds.UserID).Str("session_id", sessionID).Msg("auth: signed in")
	return pair, nil
}

// Verify checks a presented pair on the read path and returns the access claims.
func (a *Authenticator) Verify(ctx context.Context, presented TokenPair) (security.AccessClaims, error) {
	d, err := a.decode(presented)
	if err != nil {
		return security.AccessClaims{}, err
	}
	if err := a.checkBinding(ctx, d); err != nil {
		return security.AccessClaims{}, err
	}
	if d.accessExpired || d.refreshExpired {
		return security.AccessClaims{}, ErrUnauthorized
	}
	return d.access, nil
}

// Refresh rotates the session's refresh token and returns a new pair. The access
// token may be expired; the refresh token may not.
func (a *Authenticator) Refresh(ctx context.Context, presented TokenPair) (TokenPair, error) {
	pair, outcome, err := a.refresh(ctx, presented)
	a.metrics.Refresh(ctx, outcome)
	return pair, err
}

func (a *Authenticator) refresh(ctx context.Context, presented TokenPair) (TokenPair, string, error) {
	d, err := a.decode(presented)
	if err != nil {
		return TokenPair{}, "invalid_credentials", err
	}
	if err := a.checkBinding(ctx, d); err != nil {
		return TokenPair{}, "session_mismatch", err
	}
	if d.refreshExpired {
		return TokenPair{}, "expired", ErrUnauthorized
	}

	sessionID := d.refresh.SessionID
	sess, err := a.sessions.Fetch(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrNotFound) {
			return TokenPair{}, "session_not_found", ErrUnauthorized
		}
		return TokenPair{}, "error", fmt.Errorf("refresh: fetch session: %w", err)
	}
	stored, err := a.codec.VerifyRefresh(sess.RefreshToken)
	if (err != nil && !errors.Is(err, security.ErrTokenExpired)) || stored != d.refresh {
		a.metrics.ReuseDetected(ctx)
		a.revoke(ctx, telemetrydomain.EventRefreshReuse, d.refresh.UserID,
			"stale refresh token presented after rotation", sessionID)
		return TokenPair{}, "reuse_detected", ErrUnauthorized
	}

	access := a.codec.NewAccessClaims(d.access.UserID, sessionID, d.access.Role, a.accessTTL)
	refresh := a.codec.NewRefreshClaims(d.refresh.UserID, sessionID, a.refreshTTL)
	// A rotation inside the same second as the previous issuance would otherwise
	// reproduce the presented token byte for byte.
	if refresh.IssuedAt <= d.refresh.IssuedAt {
		shift := d.refresh.IssuedAt + 1 - refresh.IssuedAt
		access.IssuedAt += shift
		access.ExpiresAt += shift
		refresh.IssuedAt += shift
		refresh.ExpiresAt += shift
	}
	pair, err := a.sign(access, refresh)
	if err != nil {
		return TokenPair{}, "error", fmt.Errorf("refresh: %w", err)
	}

	if err := a.sessions.ReplaceRefreshToken(ctx, sessionID, presented.RefreshToken, pair.RefreshToken); err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrConflict):
			a.emit(ctx, telemetrydomain.EventRefreshConflict, d.refresh.UserID,
				"refresh token rotated by a concurrent request", []string{sessionID})
			return TokenPair{}, "conflict", fmt.Errorf("%w: %w", ErrUnauthorized, ErrRefreshConflict)
		case errors.Is(err, sessionrepo.ErrNotFound):
			return TokenPair{}, "session_not_found", ErrUnauthorized
		default:
			return TokenPair{}, "error", fmt.Errorf("refresh: replace token: %w", err)
		}
	}

	log.Debug(ctx).Str("user_id", d.refresh.UserID).Str("session_id", sessionID).Msg("auth: refreshed")
	return pair, "success", nil
}

// SignOut verifies the pair and deletes its session.
func (a *Authenticator) SignOut(ctx context.Context, presented TokenPair) error {
	claims, err := a.Verify(ctx, presented)
	if err != nil {
		return err
	}
	if err := a.sessions.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	log.Info(ctx).Str("user_id", claims.UserID).Str("session_id", claims.SessionID).Msg("auth: signed out")
	return nil
}

type decoded struct {
	access         security.AccessClaims
	refresh        security.RefreshClaims
	accessExpired  bool
	refreshExpired bool
}

// decode verifies both tokens. Expiry is reported on the result rather than as an error.
func (a *Authenticator) decode(presented TokenPair) (decoded, error) {
	if presented.AccessToken == "" || presented.RefreshToken == "" {
		return decoded{}, ErrInvalidCredentials
	}
	var d decoded
	var err error
	d.access, err = a.codec.VerifyAccess(presented.AccessToken)
	if err != nil {
		if !errors.Is(err, security.ErrTokenExpired) {
			return decoded{}, ErrInvalidCredentials
		}
		d.accessExpired = true
	}
	d.refresh, err = a.codec.VerifyRefresh(presented.RefreshToken)
	if err != nil {
		if !errors.Is(err, security.ErrTokenExpired) {
			return decoded{}, ErrInvalidCredentials
		}
		d.refreshExpired = true
	}
	return d, nil
}

// checkBinding rejects pairs whose tokens were not minted together and revokes every session they name.
func (a *Authenticator) checkBinding(ctx context.Context, d decoded) error {
	if d.access.SessionID == d.refresh.SessionID && d.access.UserID == d.refresh.UserID {
		return nil
	}
	ids := []string{d.access.SessionID}
	if d.refresh.SessionID != d.access.SessionID {
		ids = append(ids, d.refresh.SessionID)
	}
	a.revoke(ctx, telemetrydomain.EventSessionMismatch, d.refresh.UserID,
		"access and refresh tokens belong to different sessions", ids...)
	return ErrUnauthorized
}

// revoke deletes sessions before a rejection is returned. A failed delete is
// logged and emitted but never replaces the rejection.
func (a *Authenticator) revoke(ctx context.Context, reason telemetrydomain.EventType, userID, detail string, ids ...string) {
	// The delete must still run if the client has gone away.
	err := a.sessions.Delete(context.WithoutCancel(ctx), ids...)
	a.metrics.Revocation(ctx, string(reason), len(ids), err != nil)
	a.emit(ctx, reason, userID, detail, ids)
	if err != nil {
		log.Warn(ctx).Err(err).Strs("session_ids", ids).Str("reason", string(reason)).
			Msg("auth: session revocation failed")
		a.emit(ctx, telemetrydomain.EventRevocationFailed, userID, err.Error(), ids)
		return
	}
	log.Warn(ctx).Strs("session_ids", ids).Str("reason", string(reason)).Msg("auth: sessions revoked")
}

func (a *Authenticator) emit(ctx context.Context, typ telemetrydomain.EventType, userID, detail string, ids []string) {
	if a.events == nil {
		return
	}
	event := &telemetrydomain.SecurityEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		SessionIDs: ids,
		Detail:     detail,
		CreatedAt:  a.codec.Now().UTC(),
	}
	if err := a.events.Emit(ctx, event); err != nil {
		log.Warn(ctx).Err(err).Str("event_type", string(typ)).Msg("auth: security event emit failed")
	}
}

func (a *Authenticator) sign(access security.AccessClaims, refresh security.RefreshClaims) (TokenPair, error) {
	at, err := a.codec.SignAccess(access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	rt, err := a.codec.SignRefresh(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: at, RefreshToken: rt}, nil
}

type noopMetrics struct{}

func (noopMetrics) SignIn(context.Context, string)                 {}
func (noopMetrics) Refresh(context.Context, string)                {}
func (noopMetrics) Revocation(context.Context, string, int, bool) {}
func (noopMetrics) ReuseDetected(context.Context)                  {}
