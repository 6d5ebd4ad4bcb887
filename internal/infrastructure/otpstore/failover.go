package otpstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marisec-auth/internal/domain"
)

// Backend is implemented by dynamo.OTPRepo and memory.OTPStore.
type Backend interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, email string, otpType domain.OTPType, ceiling int) (int, error)
	Delete(ctx context.Context, email string, otpType domain.OTPType) error
}

// Failover serves OTP records from the durable primary and retries a call on the
// in-process fallback when the primary reports domain.ErrStoreUnavailable.
// A nil primary means DynamoDB could not be reached at startup; every call then
// goes to the fallback. Callers never learn which backend answered.
type Failover struct {
	primary  Backend
	fallback Backend
	log      *slog.Logger
}

func New(primary, fallback Backend, log *slog.Logger) *Failover {
	if log == nil {
		log = slog.Default()
	}
	return &Failover{primary: primary, fallback: fallback, log: log}
}

// ActiveBackend names the store chosen at startup.
func (f *Failover) ActiveBackend() string {
	if f.primary == nil {
		return "memory"
	}
	return "dynamodb"
}

func (f *Failover) Put(ctx context.Context, rec *domain.OTPRecord) error {
	return f.do(ctx, "put", func(b Backend) error { return b.Put(ctx, rec) })
}

func (f *Failover) Get(ctx context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error) {
	var rec *domain.OTPRecord
	err := f.do(ctx, "get", func(b Backend) error {
		var err error
		rec, err = b.Get(ctx, email, otpType)
		return err
	})
	return rec, err
}

func (f *Failover) IncrementAttempts(ctx context.Context, email string, otpType domain.OTPType, ceiling int) (int, error) {
	var n int
	err := f.do(ctx, "increment", func(b Backend) error {
		var err error
		n, err = b.IncrementAttempts(ctx, email, otpType, ceiling)
		return err
	})
	return n, err
}

func (f *Failover) Delete(ctx context.Context, email string, otpType domain.OTPType) error {
	return f.do(ctx, "delete", func(b Backend) error { return b.Delete(ctx, email, otpType) })
}

func (f *Failover) do(ctx context.Context, op string, call func(Backend) error) error {
	if f.primary != nil {
		err := call(f.primary)
		if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		f.log.WarnContext(ctx, "otp primary store unavailable, using in-memory fallback", "op", op, "err", err)
	}
	return call(f.fallback)
}
