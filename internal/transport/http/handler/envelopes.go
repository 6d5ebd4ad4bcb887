package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marisec-auth/internal/application/user"
	"github.com/marisec-auth/internal/domain"
)

const maxJSONBody = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UserSummary is the user as returned after sign-in or sign-up.
type UserSummary struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Name            string `json:"name,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
}

// AuthEnvelope wraps OTP verification and login responses. The session token
// itself travels only in the auth_token cookie.
type AuthEnvelope struct {
	Message   string       `json:"message"`
	User      *UserSummary `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ProfileView is the GET /profile body.
type ProfileView struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	Username        string              `json:"username"`
	Name            string              `json:"name,omitempty"`
	DateOfBirth     string              `json:"date_of_birth,omitempty"`
	AvatarURL       string              `json:"avatar_url,omitempty"`
	IsEmailVerified bool                `json:"is_email_verified"`
	Subscription    domain.Subscription `json:"subscription"`
	Usage           domain.Usage        `json:"usage"`
	CreatedAt       time.Time           `json:"created"`
}

func toUserSummary(u *domain.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:              u.UserID,
		Email:           u.Email,
		Username:        u.Username,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
	}
}

func toProfileView(p *user.Profile) ProfileView {
	u := p.User
	v := ProfileView{
		ID:              u.UserID,
		Email:           u.Email,
		Username:        u.Username,
		Name:            u.Name,
		AvatarURL:       p.AvatarURL,
		IsEmailVerified: u.IsEmailVerified,
		Subscription:    u.Subscription,
		Usage:           u.Usage,
		CreatedAt:       u.CreatedAt,
	}
	if u.DateOfBirth != nil {
		v.DateOfBirth = u.DateOfBirth.Format(time.DateOnly)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg, Error: code})
}

// decodeJSON reads a bounded JSON body into dst and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return false
	}
	return true
}
