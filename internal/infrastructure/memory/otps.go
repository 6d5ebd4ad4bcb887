package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marisec-auth/internal/domain"
)

const defaultSweepInterval = 5 * time.Minute

// OTPStore is a process-local OTP record store used when DynamoDB is unreachable.
// Records live in this process only: with several instances, a code issued on one
// instance cannot be verified on another while in fallback mode.
//
// The sweep goroutine starts in NewOTPStore and stops in Close.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]*domain.OTPRecord // key: type|email
	now     func() time.Time
	log     *slog.Logger

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

type Option func(*OTPStore)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *OTPStore) { s.now = now }
}

// WithLogger sets the logger used by the sweep. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *OTPStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSweepInterval sets how often expired records are evicted. Zero disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *OTPStore) { s.interval = d }
}

func NewOTPStore(opts ...Option) *OTPStore {
	s := &OTPStore{
		records:  make(map[string]*domain.OTPRecord),
		now:      time.Now,
		log:      slog.Default(),
		interval: defaultSweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval > 0 {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

// Close stops the sweep goroutine and waits for it to exit. Safe to call twice.
func (s *OTPStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *OTPStore) Put(_ context.Context, rec *domain.OTPRecord) error {
	cp := *rec
	if rec.PendingUser != nil {
		pu := *rec.PendingUser
		cp.PendingUser = &pu
	}
	s.mu.Lock()
	s.records[key(rec.Email, rec.Type)] = &cp
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Get(_ context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(email, otpType)]
	if !ok {
		return nil, fmt.Errorf("otp record: %w", domain.ErrNotFound)
	}
	cp := *rec
	if rec.PendingUser != nil {
		pu := *rec.PendingUser
		cp.PendingUser = &pu
	}
	return &cp, nil
}

// IncrementAttempts records one attempt under the store lock, refusing to
// go past ceiling.
func (s *OTPStore) IncrementAttempts(_ context.Context, email string, otpType domain.OTPType, ceiling int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(email, otpType)]
	if !ok {
		return 0, fmt.Errorf("otp record: %w", domain.ErrNotFound)
	}
	if rec.Attempts >= ceiling {
		return rec.Attempts, domain.ErrOTPAttemptsExceeded
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (s *OTPStore) Delete(_ context.Context, email string, otpType domain.OTPType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(email, otpType)
	if _, ok := s.records[k]; !ok {
		return fmt.Errorf("otp record: %w", domain.ErrNotFound)
	}
	delete(s.records, k)
	return nil
}

// Sweep evicts every record whose expiry has passed and returns how many were removed.
func (s *OTPStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

// Len returns the number of records currently held.
func (s *OTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *OTPStore) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug("evicted expired otp records", "count", n)
			}
		case <-s.stop:
			return
		}
	}
}

func key(email string, otpType domain.OTPType) string {
	return string(otpType) + "|" + email
}
