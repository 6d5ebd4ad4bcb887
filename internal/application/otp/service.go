package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/marisec-auth/internal/domain"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 3

	codeMin = 100000
	codeMax = 999999
)

// Store is the record storage the engine drives. otpstore.Failover satisfies it.
type Store interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, email string, otpType domain.OTPType, ceiling int) (int, error)
	Delete(ctx context.Context, email string, otpType domain.OTPType) error
}

// Result is returned by a successful verification.
type Result struct {
	Type        domain.OTPType
	PendingUser *domain.PendingUser
}

type Engine struct {
	store       Store
	pepper      []byte
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	log         *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds an engine over store. pepper keys the code digest; an empty
// pepper still yields a one-way digest but should only be used in development.
func NewEngine(store Store, pepper string, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		pepper:      []byte(pepper),
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Issue generates a fresh code for (email, otpType), replacing any earlier
// record for the pair, and returns the raw code for out-of-band delivery.
func (e *Engine) Issue(ctx context.Context, email string, otpType domain.OTPType, pending *domain.PendingUser) (string, error) {
	if email == "" {
		return "", fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	if !otpType.Valid() {
		return "", fmt.Errorf("unknown otp type %q: %w", otpType, domain.ErrBadRequest)
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	now := e.now().UTC()
	rec := &domain.OTPRecord{
		Email:       email,
		Type:        otpType,
		CodeHash:    e.hash(code),
		ExpiresAt:   now.Add(e.ttl),
		Attempts:    0,
		PendingUser: pending,
		CreatedAt:   now,
	}
	if err := e.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store otp record: %w", err)
	}
	return code, nil
}

// Verify checks code against the live record for (email, otpType). An empty
// otpType tries registration first and falls back to login only when no
// registration record exists.
func (e *Engine) Verify(ctx context.Context, email, code string, otpType domain.OTPType) (*Result, error) {
	if email == "" || code == "" {
		return nil, fmt.Errorf("email and otp are required: %w", domain.ErrBadRequest)
	}
	if otpType == "" {
		res, err := e.verify(ctx, email, code, domain.OTPRegistration)
		if !errors.Is(err, domain.ErrOTPNotFound) {
			return res, err
		}
		return e.verify(ctx, email, code, domain.OTPLogin)
	}
	if !otpType.Valid() {
		return nil, fmt.Errorf("unknown otp type %q: %w", otpType, domain.ErrBadRequest)
	}
	return e.verify(ctx, email, code, otpType)
}

func (e *Engine) verify(ctx context.Context, email, code string, otpType domain.OTPType) (*Result, error) {
	rec, err := e.store.Get(ctx, email, otpType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("load otp record: %w", err)
	}

	if rec.Expired(e.now()) {
		e.discard(ctx, email, otpType)
		return nil, domain.ErrOTPExpired
	}
	if rec.Attempts >= e.maxAttempts {
		e.discard(ctx, email, otpType)
		return nil, domain.ErrOTPAttemptsExceeded
	}

	// The attempt is reserved before the comparison so that concurrent
	// verifiers never evaluate more guesses than the ceiling allows.
	if _, err := e.store.IncrementAttempts(ctx, email, otpType, e.maxAttempts); err != nil {
		switch {
		case errors.Is(err, domain.ErrOTPAttemptsExceeded):
			e.discard(ctx, email, otpType)
			return nil, domain.ErrOTPAttemptsExceeded
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrOTPNotFound
		default:
			return nil, fmt.Errorf("record attempt: %w", err)
		}
	}
	if !hmac.Equal([]byte(e.hash(code)), []byte(rec.CodeHash)) {
		return nil, domain.ErrOTPInvalidCode
	}

	// Only the request whose delete lands consumes the code.
	if err := e.store.Delete(ctx, email, otpType); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("consume otp record: %w", err)
	}
	return &Result{Type: otpType, PendingUser: rec.PendingUser}, nil
}

func (e *Engine) discard(ctx context.Context, email string, otpType domain.OTPType) {
	if err := e.store.Delete(ctx, email, otpType); err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.log.WarnContext(ctx, "failed to delete dead otp record", "type", otpType, "err", err)
	}
}

func (e *Engine) hash(code string) string {
	mac := hmac.New(sha256.New, e.pepper)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// generateCode draws uniformly from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
