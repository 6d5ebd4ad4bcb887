package http

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/marisec-auth/internal/domain"
	jwtinfra "github.com/marisec-auth/internal/infrastructure/jwt"
	appmiddleware "github.com/marisec-auth/internal/transport/http/middleware"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	SetAvatarKey(ctx context.Context, userID, key string) error
}

// OTPStore is the minimal interface the router requires from the OTP record store.
type OTPStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, email string, otpType domain.OTPType, ceiling int) (int, error)
	Delete(ctx context.Context, email string, otpType domain.OTPType) error
}

// ObjectStore is the minimal interface the router requires from an object storage backend.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
}

// Deps holds all infrastructure dependencies for the router. SMSSender,
// Events and Avatars are optional; leave them nil when disabled.
type Deps struct {
	UserRepo    UserRepository
	OTPStore    OTPStore
	Mailer      Mailer
	SMSSender   SMSSender
	Events      EventPublisher
	Avatars     ObjectStore
	JWTProvider *jwtinfra.Provider
	RateLimiter *appmiddleware.RateLimiter
	Logger      *slog.Logger
}
