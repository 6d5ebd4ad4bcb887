package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marisec-auth/internal/application/session"
	"github.com/marisec-auth/internal/config"
	"github.com/marisec-auth/internal/domain"
	jwtinfra "github.com/marisec-auth/internal/infrastructure/jwt"
	"github.com/marisec-auth/internal/infrastructure/memory"
	"github.com/marisec-auth/internal/testutil"
	appmiddleware "github.com/marisec-auth/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// --- fakes ---

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*domain.User{}} }

func (s *memUsers) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.byID[u.UserID] = &cp
	return nil
}

func (s *memUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memUsers) MarkEmailVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[userID]; ok {
		u.IsEmailVerified = true
		return nil
	}
	return domain.ErrNotFound
}

func (s *memUsers) SetAvatarKey(_ context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[userID]; ok {
		u.AvatarKey = key
		return nil
	}
	return domain.ErrNotFound
}

type capturingMailer struct {
	mu   sync.Mutex
	last string
}

func (m *capturingMailer) SendEmail(_, _, body string) error {
	m.mu.Lock()
	m.last = body
	m.mu.Unlock()
	return nil
}

var codePattern = regexp.MustCompile(`\d{6}`)

func (m *capturingMailer) code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return codePattern.FindString(m.last)
}

// --- harness ---

type harness struct {
	handler http.Handler
	users   *memUsers
	mailer  *capturingMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		SessionTTL:     30 * 24 * time.Hour,
		OTP: config.OTP{
			Pepper:           "pepper",
			TTL:              10 * time.Minute,
			MaxAttempts:      3,
			DeliveryRequired: true,
		},
	}
	store := memory.NewOTPStore(memory.WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	provider, err := jwtinfra.NewProvider("test-secret", cfg.SessionTTL)
	require.NoError(t, err)
	rl := appmiddleware.NewRateLimiter(rate.Inf, 1)
	t.Cleanup(rl.Stop)

	h := &harness{users: newMemUsers(), mailer: &capturingMailer{}}
	h.handler = NewRouter(cfg, &Deps{
		UserRepo:    h.users,
		OTPStore:    store,
		Mailer:      h.mailer,
		JWTProvider: provider,
		RateLimiter: rl,
		Logger:      testutil.MakeNoopLogger().Logger,
	})
	return h
}

func (h *harness) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func authCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// --- scenarios ---

func TestRegistrationScenario(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/otp/issue", map[string]interface{}{
		"email": "user@example.com",
		"type":  "registration",
		"pendingUserData": map[string]string{
			"username": "diver1",
			"password": "hunter2",
		},
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	code := h.mailer.code()
	require.NotEmpty(t, code)

	rr = h.do(http.MethodPost, "/otp/verify", map[string]string{
		"email": "user@example.com", "otp": code, "type": "registration",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cookie := authCookie(rr)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	_, err := h.users.GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)

	rr = h.do(http.MethodPost, "/otp/verify", map[string]string{
		"email": "user@example.com", "otp": code, "type": "registration",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.ErrOTPNotFound.Error())

	rr = h.do(http.MethodGet, "/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, "diver1", profile["username"])
	assert.Equal(t, true, profile["is_email_verified"])
	assert.Equal(t, "free", profile["subscription"].(map[string]interface{})["plan"])
}

func TestLoginScenario(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/otp/issue", map[string]interface{}{
		"email": "user@example.com", "type": "registration",
		"pendingUserData": map[string]string{"username": "diver1", "password": "hunter2"},
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	rr = h.do(http.MethodPost, "/otp/verify", map[string]string{"email": "user@example.com", "otp": h.mailer.code()})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = h.do(http.MethodPost, "/login", map[string]string{"email": "user@example.com", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Nil(t, authCookie(rr))

	rr = h.do(http.MethodPost, "/login", map[string]string{"email": "user@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, authCookie(rr))
}

func TestLoginOTPScenario(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()
	require.NoError(t, h.users.Create(context.Background(), &domain.User{
		UserID: "u1", Email: "user@example.com", Username: "diver1", CreatedAt: now, UpdatedAt: now,
	}))

	rr := h.do(http.MethodPost, "/otp/issue", map[string]string{"email": "user@example.com", "type": "login"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = h.do(http.MethodPost, "/otp/verify", map[string]string{"email": "user@example.com", "otp": h.mailer.code(), "type": "login"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, authCookie(rr))

	u, err := h.users.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, u.IsEmailVerified)
}

func TestProfile_TokenStates(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "no token")

	rr = h.do(http.MethodGet, "/profile", nil, &http.Cookie{Name: session.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "malformed token")

	provider, err := jwtinfra.NewProvider("test-secret", time.Hour)
	require.NoError(t, err)
	ghost, _, err := provider.Sign("ghost", "ghost@example.com")
	require.NoError(t, err)
	rr = h.do(http.MethodGet, "/profile", nil, &http.Cookie{Name: session.CookieName, Value: ghost})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	past := time.Now().Add(-48 * time.Hour)
	old, err := jwtinfra.NewProvider("test-secret", time.Hour, jwtinfra.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	expired, _, err := old.Sign("ghost", "ghost@example.com")
	require.NoError(t, err)
	rr = h.do(http.MethodGet, "/profile", nil, &http.Cookie{Name: session.CookieName, Value: expired})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "token expired")
}

func TestIssue_MissingFields(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/otp/issue", map[string]string{"type": "login"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/health-check/ping", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewRouter_RequiresRateLimiter(t *testing.T) {
	cfg := &config.Config{}
	assert.Panics(t, func() { NewRouter(cfg, &Deps{}) })
}

func newLimitedRouter(t *testing.T, trustProxy bool) http.Handler {
	t.Helper()
	cfg := &config.Config{TrustProxyHeaders: trustProxy, SessionTTL: time.Hour}
	store := memory.NewOTPStore(memory.WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	provider, err := jwtinfra.NewProvider("test-secret", cfg.SessionTTL)
	require.NoError(t, err)
	rl := appmiddleware.NewRateLimiter(rate.Limit(0.001), 1)
	t.Cleanup(rl.Stop)
	return NewRouter(cfg, &Deps{
		UserRepo:    newMemUsers(),
		OTPStore:    store,
		Mailer:      &capturingMailer{},
		JWTProvider: provider,
		RateLimiter: rl,
		Logger:      testutil.MakeNoopLogger().Logger,
	})
}

func loginFrom(h http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@b.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:4444"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimit_ForwardedForIgnoredByDefault(t *testing.T) {
	h := newLimitedRouter(t, false)
	assert.NotEqual(t, http.StatusTooManyRequests, loginFrom(h, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(h, "198.51.100.2"))
}

func TestRateLimit_ForwardedForHonouredBehindTrustedProxy(t *testing.T) {
	h := newLimitedRouter(t, true)
	assert.NotEqual(t, http.StatusTooManyRequests, loginFrom(h, "198.51.100.1"))
	assert.NotEqual(t, http.StatusTooManyRequests, loginFrom(h, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(h, "198.51.100.1"))
}
