package security

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or carries the wrong audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned with otherwise valid claims whose exp is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// TokenCodec signs and verifies access and refresh tokens with the key material it was built with.
// It performs no I/O and holds no mutable state.
type TokenCodec struct {
	keys     *KeyMaterial
	audience string
	now      func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec returns a codec for the given keys. audience is written to every token and required on verify.
func NewTokenCodec(keys *KeyMaterial, audience string, opts ...CodecOption) (*TokenCodec, error) {
	if keys == nil || keys.Access.Private == nil || keys.Refresh.Private == nil {
		return nil, ErrInvalidKey
	}
	if audience == "" {
		return nil, errors.New("security: audience is required")
	}
	c := &TokenCodec{keys: keys, audience: audience, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the codec's current time.
func (c *TokenCodec) Now() time.Time { return c.now() }

// NewAccessClaims builds access claims issued now and expiring after ttl.
func (c *TokenCodec) NewAccessClaims(userID, sessionID string, role Role, ttl time.Duration) AccessClaims {
	return AccessClaims{
		StandardClaims: c.standard(ttl),
		UserID:         userID,
		SessionID:      sessionID,
		Role:           role,
	}
}

// NewRefreshClaims builds refresh claims issued now and expiring after ttl.
func (c *TokenCodec) NewRefreshClaims(userID, sessionID string, ttl time.Duration) RefreshClaims {
	return RefreshClaims{
		StandardClaims: c.standard(ttl),
		UserID:         userID,
		SessionID:      sessionID,
	}
}

func (c *TokenCodec) standard(ttl time.Duration) StandardClaims {
	now := c.now().UTC()
	return StandardClaims{
		Audience:  c.audience,
		ExpiresAt: now.Add(ttl).Unix(),
		IssuedAt:  now.Unix(),
	}
}

// SignAccess returns the compact signed form of claims using the access key.
func (c *TokenCodec) SignAccess(claims AccessClaims) (string, error) {
	return sign(c.keys.Access, claims)
}

// SignRefresh returns the compact signed form of claims using the refresh key.
func (c *TokenCodec) SignRefresh(claims RefreshClaims) (string, error) {
	return sign(c.keys.Refresh, claims)
}

// VerifyAccess checks the signature and audience of an access token and decodes it.
// An expired token yields its claims together with ErrTokenExpired.
func (c *TokenCodec) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := parse(c.keys.Access, token, &claims); err != nil {
		return AccessClaims{}, err
	}
	if claims.UserID == "" || claims.SessionID == "" || !claims.Role.Valid() {
		return AccessClaims{}, ErrInvalidToken
	}
	if err := c.check(claims.StandardClaims); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return claims, err
		}
		return AccessClaims{}, err
	}
	return claims, nil
}

// refreshPayload decodes a refresh token while keeping track of a role claim, which only
// access tokens carry.
type refreshPayload struct {
	RefreshClaims
	Role *string `json:"rle,omitempty"`
}

// VerifyRefresh checks the signature and audience of a refresh token and decodes it.
// An expired token yields its claims together with ErrTokenExpired.
// A payload carrying a role is an access token and is rejected even when both token
// types share a key pair.
func (c *TokenCodec) VerifyRefresh(token string) (RefreshClaims, error) {
	var payload refreshPayload
	if err := parse(c.keys.Refresh, token, &payload); err != nil {
		return RefreshClaims{}, err
	}
	if payload.Role != nil {
		return RefreshClaims{}, fmt.Errorf("%w: access token presented as refresh token", ErrInvalidToken)
	}
	claims := payload.RefreshClaims
	if claims.UserID == "" || claims.SessionID == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	if err := c.check(claims.StandardClaims); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return claims, err
		}
		return RefreshClaims{}, err
	}
	return claims, nil
}

func (c *TokenCodec) check(std StandardClaims) error {
	if std.Audience != c.audience {
		return fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if std.Expired(c.now()) {
		return ErrTokenExpired
	}
	return nil
}

func signingMethod(pub any) (jwt.SigningMethod, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256, nil
	case *ecdsa.PublicKey:
		return jwt.SigningMethodES256, nil
	default:
		return nil, ErrInvalidKey
	}
}

func sign(pair KeyPair, claims jwt.Claims) (string, error) {
	method, err := signingMethod(pair.Private.Public())
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(method, claims).SignedString(pair.Private)
}

// parse verifies the signature only; registered claims are checked by the codec so that
// expiry can be reported separately from tampering.
func parse(pair KeyPair, token string, claims jwt.Claims) error {
	method, err := signingMethod(pair.Public)
	if err != nil {
		return err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	t, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return pair.Public, nil
	})
	if err != nil || !t.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
