package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed covers bad signatures, wrong algorithms and unparsable payloads.
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 session JWTs with a server-held secret.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Provider)

// WithClock overrides time.Now for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(secret string, ttl time.Duration, opts ...Option) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}
	p := &Provider{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TTL is the fixed lifetime of every token this provider signs.
func (p *Provider) TTL() time.Duration { return p.ttl }

// Sign returns a token for the subject and the instant it expires.
func (p *Provider) Sign(userID, email string) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature and expiry. An expired token still returns its
// claims alongside ErrExpired so the caller can report the expiry instant.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.ExpiresAt != nil {
			return claims, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrMalformed)
	}
	return claims, nil
}
