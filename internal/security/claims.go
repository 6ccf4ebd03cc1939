package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller's role carried in the access token. The set is closed.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole returns the Role for s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// StandardClaims are the registered claims shared by both token types.
// Timestamps are unix seconds.
type StandardClaims struct {
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	StandardClaims
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Role      Role   `json:"rle"`
}

// RefreshClaims is the payload of a long-lived refresh token.
type RefreshClaims struct {
	StandardClaims
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
}

// Expired reports whether the claims expired strictly before now.
func (c StandardClaims) Expired(now time.Time) bool {
	return c.ExpiresAt < now.Unix()
}

// The methods below satisfy jwt.Claims. Validation is done by TokenCodec, not the jwt parser.

func (c StandardClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c StandardClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c StandardClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

func (c StandardClaims) GetIssuer() (string, error) { return "", nil }

func (c StandardClaims) GetSubject() (string, error) { return "", nil }

func (c StandardClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}
