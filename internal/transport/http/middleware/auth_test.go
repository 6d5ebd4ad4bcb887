package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marisec-auth/internal/application/session"
	"github.com/marisec-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, token string) (*session.Identity, error) {
	args := m.Called(ctx, token)
	if id, _ := args.Get(0).(*session.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func serve(v *mockVerifier, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	Auth(v)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAuth_CookieToken(t *testing.T) {
	v := &mockVerifier{}
	ident := &session.Identity{UserID: "u1", Email: "a@b.com"}
	v.On("Verify", mock.Anything, "cookie-token").Return(ident, nil)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	var got *session.Identity
	rr := httptest.NewRecorder()
	Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ident, got)
	v.AssertExpectations(t)
}

func TestAuth_BearerFallback(t *testing.T) {
	v := &mockVerifier{}
	v.On("Verify", mock.Anything, "header-token").Return(&session.Identity{UserID: "u1"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, http.StatusOK, serve(v, req).Code)
}

func TestAuth_ErrorMapping(t *testing.T) {
	expiredAt := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no token", session.ErrNoToken, http.StatusUnauthorized, "no_token"},
		{"expired", &session.ExpiredError{ExpiredAt: expiredAt}, http.StatusUnauthorized, "token_expired"},
		{"malformed", session.ErrTokenMalformed, http.StatusUnauthorized, "malformed_token"},
		{"unknown subject", session.ErrUnknownSubject, http.StatusNotFound, "user_not_found"},
		{"config", &domain.ConfigError{Op: "connect", Err: errors.New("x")}, http.StatusInternalServerError, "database_not_configured"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &mockVerifier{}
			v.On("Verify", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := serve(v, httptest.NewRequest(http.MethodGet, "/profile", nil))
			assert.Equal(t, tc.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tc.code, body.Error)
			assert.NotEmpty(t, body.Message)
			if tc.code == "token_expired" {
				require.NotNil(t, body.ExpiredAt)
				assert.True(t, expiredAt.Equal(*body.ExpiredAt))
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, tokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, tokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", tokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", tokenFromRequest(req))
}

func TestIdentityFromContext_Missing(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
}
