package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marisec-auth/internal/domain"
	jwtinfra "github.com/marisec-auth/internal/infrastructure/jwt"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

// Identity is what a verified token resolves to.
type Identity struct {
	UserID string
	Email  string
	User   *domain.User
}

// Issued is a freshly minted session token.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type Service interface {
	Issue(userID, email string) (*Issued, error)
	Verify(ctx context.Context, token string) (*Identity, error)
	Cookie(issued *Issued, r *http.Request) *http.Cookie
	ClearCookie(r *http.Request) *http.Cookie
}

type tokenProvider interface {
	Sign(userID, email string) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
	TTL() time.Duration
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type ServiceDeps struct {
	Tokens tokenProvider
	Users  userStore
	// SecureCookies forces the Secure attribute; TLS requests get it regardless.
	SecureCookies bool
}

type service struct {
	tokens        tokenProvider
	users         userStore
	secureCookies bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tokens:        deps.Tokens,
		users:         deps.Users,
		secureCookies: deps.SecureCookies,
	}
}

func (s *service) Issue(userID, email string) (*Issued, error) {
	token, exp, err := s.tokens.Sign(userID, email)
	if err != nil {
		return nil, err
	}
	return &Issued{Token: token, ExpiresAt: exp}, nil
}

func (s *service) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, jwtinfra.ErrExpired) && claims != nil && claims.ExpiresAt != nil {
			return nil, &ExpiredError{ExpiredAt: claims.ExpiresAt.Time}
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	u, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("resolve session subject: %w", err)
	}
	return &Identity{UserID: u.UserID, Email: claims.Email, User: u}, nil
}

func (s *service) Cookie(issued *Issued, r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *service) ClearCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *service) secure(r *http.Request) bool {
	return s.secureCookies || (r != nil && r.TLS != nil)
}
