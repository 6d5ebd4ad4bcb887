package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrStoreUnavailable marks a failed round trip to the durable backend.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidCredentials never says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrOTPNotFound         = errors.New("OTP not found or expired")
	ErrOTPExpired          = errors.New("OTP expired")
	ErrOTPAttemptsExceeded = errors.New("too many attempts, request a new code")
	ErrOTPInvalidCode      = errors.New("invalid code")

	ErrDeliveryFailed = errors.New("could not deliver verification code")
)

// ConfigError reports that the durable store is missing or misconfigured.
// It is returned by the store constructor and bootstrap, never derived from message text.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return "database not configured: " + e.Op + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is lets callers treat a configuration failure as store unavailability.
func (e *ConfigError) Is(target error) bool { return target == ErrStoreUnavailable }

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
