package security

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0).UTC()

func newFixedCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTestTokenCodec(WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return c
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	c := newFixedCodec(t)

	access := c.NewAccessClaims("u1", "s1", RoleStudent, 15*time.Minute)
	signed, err := c.SignAccess(access)
	require.NoError(t, err)
	assert.Len(t, strings.Split(signed, "."), 3)

	got, err := c.VerifyAccess(signed)
	require.NoError(t, err)
	assert.Equal(t, access, got)
	assert.Equal(t, AccessClaims{
		StandardClaims: StandardClaims{Audience: TestAudience, ExpiresAt: fixedNow.Unix() + 900, IssuedAt: fixedNow.Unix()},
		UserID:         "u1",
		SessionID:      "s1",
		Role:           RoleStudent,
	}, got)

	refresh := c.NewRefreshClaims("u1", "s1", 7*24*time.Hour)
	signedRefresh, err := c.SignRefresh(refresh)
	require.NoError(t, err)
	gotRefresh, err := c.VerifyRefresh(signedRefresh)
	require.NoError(t, err)
	assert.Equal(t, refresh, gotRefresh)
	assert.Equal(t, fixedNow.Unix()+604800, gotRefresh.ExpiresAt)
}

func TestTokenCodec_PayloadFields(t *testing.T) {
	c := newFixedCodec(t)
	signed, err := c.SignAccess(c.NewAccessClaims("u1", "s1", RoleAdmin, time.Minute))
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(signed, ".")[1])
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"aud", "exp", "iat", "uid", "sid", "rle"}, keys)
	assert.Equal(t, "ger.com", fields["aud"])
	assert.Equal(t, "admin", fields["rle"])
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	c := newFixedCodec(t)
	base := StandardClaims{Audience: TestAudience, IssuedAt: fixedNow.Unix() - 60}

	tests := []struct {
		name    string
		exp     int64
		expired bool
	}{
		{"one second past", fixedNow.Unix() - 1, true},
		{"exactly now", fixedNow.Unix(), false},
		{"one second ahead", fixedNow.Unix() + 1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			std := base
			std.ExpiresAt = tc.exp

			access := AccessClaims{StandardClaims: std, UserID: "u1", SessionID: "s1", Role: RoleProfessor}
			signed, err := c.SignAccess(access)
			require.NoError(t, err)
			got, err := c.VerifyAccess(signed)

			refresh := RefreshClaims{StandardClaims: std, UserID: "u1", SessionID: "s1"}
			signedRefresh, err2 := c.SignRefresh(refresh)
			require.NoError(t, err2)
			gotRefresh, err2 := c.VerifyRefresh(signedRefresh)

			if tc.expired {
				assert.ErrorIs(t, err, ErrTokenExpired)
				assert.ErrorIs(t, err2, ErrTokenExpired)
			} else {
				assert.NoError(t, err)
				assert.NoError(t, err2)
			}
			// Expired tokens still surface their claims for classification.
			assert.Equal(t, access, got)
			assert.Equal(t, refresh, gotRefresh)
		})
	}
}

func TestTokenCodec_Rejects(t *testing.T) {
	c := newFixedCodec(t)
	valid, err := c.SignAccess(c.NewAccessClaims("u1", "s1", RoleStudent, time.Minute))
	require.NoError(t, err)
	parts := strings.Split(valid, ".")

	otherKeys, err := LoadKeyMaterial(KeySources{AccessPrivate: testOtherPrivateKeyPEM, AccessPublic: testOtherPublicKeyPEM})
	require.NoError(t, err)
	other, err := NewTokenCodec(otherKeys, TestAudience, WithClock(c.Now))
	require.NoError(t, err)
	foreign, err := other.SignAccess(c.NewAccessClaims("u1", "s1", RoleStudent, time.Minute))
	require.NoError(t, err)

	wrongAud, err := NewTokenCodec(c.keys, "other.example", WithClock(c.Now))
	require.NoError(t, err)
	wrongAudience, err := wrongAud.SignAccess(wrongAud.NewAccessClaims("u1", "s1", RoleStudent, time.Minute))
	require.NoError(t, err)

	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString(
		[]byte(`{"aud":"ger.com","exp":9999999999,"iat":1,"uid":"u1","sid":"s1","rle":"admin"}`),
	) + "." + parts[2]

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c.NewAccessClaims("u1", "s1", RoleStudent, time.Minute)).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	badRole, err := c.SignAccess(c.NewAccessClaims("u1", "s1", Role("dean"), time.Minute))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":          "invalid-token",
		"empty":            "",
		"foreign key":      foreign,
		"wrong audience":   wrongAudience,
		"tampered payload": tampered,
		"hmac algorithm":   hmac,
		"unknown role":     badRole,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.VerifyAccess(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenCodec_AccessAndRefreshKeysAreSeparate(t *testing.T) {
	c := newFixedCodec(t)
	access, err := c.SignAccess(c.NewAccessClaims("u1", "s1", RoleStudent, time.Minute))
	require.NoError(t, err)
	refresh, err := c.SignRefresh(c.NewRefreshClaims("u1", "s1", time.Hour))
	require.NoError(t, err)

	_, err = c.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_SharedKeysStillSeparateTokenTypes(t *testing.T) {
	src := TestKeySources()
	src.RefreshPrivate, src.RefreshPublic = "", ""
	keys, err := LoadKeyMaterial(src)
	require.NoError(t, err)
	c, err := NewTokenCodec(keys, TestAudience, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	access, err := c.SignAccess(c.NewAccessClaims("u1", "s1", RoleStudent, time.Minute))
	require.NoError(t, err)
	refresh, err := c.SignRefresh(c.NewRefreshClaims("u1", "s1", time.Hour))
	require.NoError(t, err)

	_, err = c.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	got, err := c.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
}

func TestTokenCodec_ECDSA(t *testing.T) {
	keys, err := LoadKeyMaterial(KeySources{AccessPrivate: testECPrivateKeyPEM, AccessPublic: testECPublicKeyPEM})
	require.NoError(t, err)
	c, err := NewTokenCodec(keys, TestAudience)
	require.NoError(t, err)

	signed, err := c.SignRefresh(c.NewRefreshClaims("u9", "s9", time.Hour))
	require.NoError(t, err)
	got, err := c.VerifyRefresh(signed)
	require.NoError(t, err)
	assert.Equal(t, "s9", got.SessionID)
}

func TestNewTokenCodec_Validation(t *testing.T) {
	_, err := NewTokenCodec(nil, TestAudience)
	assert.ErrorIs(t, err, ErrInvalidKey)

	keys, err := LoadKeyMaterial(TestKeySources())
	require.NoError(t, err)
	_, err = NewTokenCodec(keys, "")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"student", "professor", "admin"} {
		r, ok := ParseRole(s)
		assert.True(t, ok)
		assert.Equal(t, s, string(r))
	}
	_, ok := ParseRole("Student")
	assert.False(t, ok)
}
