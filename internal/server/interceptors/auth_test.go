package interceptors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ger/backend/internal/identity/service"
	"ger/backend/internal/security"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, presented service.TokenPair) (security.AccessClaims, error) {
	args := m.Called(ctx, presented)
	return args.Get(0).(security.AccessClaims), args.Error(1)
}

func TestTokenHeaders_ReadWrite(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Access-Token", " at ")
	r.Header.Set("x-refresh-token", "rt")
	assert.Equal(t, service.TokenPair{AccessToken: "at", RefreshToken: "rt"}, DefaultTokenHeaders.Read(r))

	rec := httptest.NewRecorder()
	DefaultTokenHeaders.Write(rec, service.TokenPair{AccessToken: "a2", RefreshToken: "r2"})
	assert.Equal(t, "a2", rec.Header().Get("x-access-token"))
	assert.Equal(t, "r2", rec.Header().Get("x-refresh-token"))
}

func TestAuthenticate_PassesClaims(t *testing.T) {
	claims := security.AccessClaims{UserID: "u1", SessionID: "s1", Role: security.RoleStudent}
	v := &mockVerifier{}
	v.On("Verify", mock.Anything, service.TokenPair{AccessToken: "at", RefreshToken: "rt"}).Return(claims, nil)

	var seen security.AccessClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaims(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	onError := func(http.ResponseWriter, *http.Request, error) { t.Fatal("onError must not be called") }

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-access-token", "at")
	r.Header.Set("x-refresh-token", "rt")
	rec := httptest.NewRecorder()
	Authenticate(v, DefaultTokenHeaders, onError)(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, claims, seen)
	v.AssertExpectations(t)
}

func TestAuthenticate_RejectsWithoutCallingNext(t *testing.T) {
	v := &mockVerifier{}
	v.On("Verify", mock.Anything, service.TokenPair{}).Return(security.AccessClaims{}, service.ErrInvalidCredentials)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("next must not be called") })
	var got error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusBadRequest)
	}

	rec := httptest.NewRecorder()
	Authenticate(v, DefaultTokenHeaders, onError)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ErrorIs(t, got, service.ErrInvalidCredentials)
}
