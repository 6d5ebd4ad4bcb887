package handler

import (
	"net/http"

	"github.com/marisec-auth/internal/application/auth"
)

// SessionHandler handles password login and logout.
type SessionHandler struct {
	svc     auth.Service
	cookies cookieIssuer
}

func NewSessionHandler(svc auth.Service, cookies cookieIssuer) *SessionHandler {
	return &SessionHandler{svc: svc, cookies: cookies}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	http.SetCookie(w, h.cookies.Cookie(res.Session, r))
	writeJSON(w, http.StatusOK, AuthEnvelope{Message: "logged in", User: toUserSummary(res.User), ExpiresAt: res.Session.ExpiresAt})
}

// Logout clears the cookie. Sessions are stateless, so there is nothing to revoke.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.ClearCookie(r))
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
