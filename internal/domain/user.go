package domain

import "time"

const (
	PlanFree = "free"

	SubscriptionActive = "active"

	// DefaultUsageLimit is the monthly enhancement quota granted on registration.
	DefaultUsageLimit = 50
)

// User is created only by a verified registration OTP. Avatar is an external
// image URL given at registration; an uploaded AvatarKey takes precedence.
type User struct {
	UserID          string       `json:"id" dynamodbav:"user_id"`
	Username        string       `json:"username" dynamodbav:"username"`
	Email           string       `json:"email" dynamodbav:"email"`
	PasswordHash    string       `json:"-" dynamodbav:"password_hash"`
	Name            string       `json:"name" dynamodbav:"name"`
	DateOfBirth     *time.Time   `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"`
	Avatar          string       `json:"-" dynamodbav:"avatar,omitempty"`
	AvatarKey       string       `json:"-" dynamodbav:"avatar_key,omitempty"`
	IsEmailVerified bool         `json:"is_email_verified" dynamodbav:"is_email_verified"`
	Subscription    Subscription `json:"subscription" dynamodbav:"subscription"`
	Usage           Usage        `json:"usage" dynamodbav:"usage"`
	CreatedAt       time.Time    `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time    `json:"updated" dynamodbav:"updated_at"`
}

type Subscription struct {
	Plan   string `json:"plan" dynamodbav:"plan"`
	Status string `json:"status" dynamodbav:"status"`
}

// Usage tracks the enhancement quota consumed by the dashboard.
type Usage struct {
	Used  int `json:"used" dynamodbav:"used"`
	Limit int `json:"limit" dynamodbav:"limit"`
}

// PendingUserInput is the registration payload submitted with an OTP request.
type PendingUserInput struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Name        string `json:"name" validate:"max=128"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Avatar      string `json:"avatar" validate:"omitempty,url"`
}

// PendingUser is the registration payload as carried inside an OTP record.
// It holds the password hash only; the user row is created from it once the code is verified.
type PendingUser struct {
	Username     string `json:"username" dynamodbav:"username"`
	PasswordHash string `json:"-" dynamodbav:"password_hash"`
	Name         string `json:"name" dynamodbav:"name,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"` // YYYY-MM-DD
	Avatar       string `json:"avatar,omitempty" dynamodbav:"avatar,omitempty"`
}
