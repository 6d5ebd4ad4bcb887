package domain

import "time"

type OTPType string

const (
	OTPRegistration OTPType = "registration"
	OTPLogin        OTPType = "login"
)

// Valid reports whether t is a known OTP type.
func (t OTPType) Valid() bool {
	return t == OTPRegistration || t == OTPLogin
}

// OTPRecord is a one-time passcode awaiting verification.
// PK: email, SK: type. ExpiresAt is stored as Unix seconds and doubles as the DynamoDB TTL attribute.
type OTPRecord struct {
	Email       string       `dynamodbav:"email"`
	Type        OTPType      `dynamodbav:"type"`
	CodeHash    string       `dynamodbav:"code_hash"`
	ExpiresAt   time.Time    `dynamodbav:"expires_at,unixtime"`
	Attempts    int          `dynamodbav:"attempts"`
	PendingUser *PendingUser `dynamodbav:"pending_user,omitempty"`
	CreatedAt   time.Time    `dynamodbav:"created_at"`
}

// Expired reports whether the record is logically dead at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
