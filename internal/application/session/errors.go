package session

import (
	"errors"
	"time"
)

var (
	ErrNoToken        = errors.New("no token")
	ErrTokenMalformed = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	// ErrUnknownSubject means the token is genuine but its user no longer exists.
	ErrUnknownSubject = errors.New("user not found")
)

// ExpiredError carries the instant a rejected token stopped being valid.
type ExpiredError struct {
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return "token expired at " + e.ExpiredAt.UTC().Format(time.RFC3339)
}

func (e *ExpiredError) Is(target error) bool { return target == ErrTokenExpired }
