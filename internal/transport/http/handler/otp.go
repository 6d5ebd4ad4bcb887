package handler

import (
	"net/http"

	"github.com/marisec-auth/internal/application/auth"
	"github.com/marisec-auth/internal/application/session"
)

type cookieIssuer interface {
	Cookie(issued *session.Issued, r *http.Request) *http.Cookie
	ClearCookie(r *http.Request) *http.Cookie
}

// OTPHandler handles passcode issuance and verification.
type OTPHandler struct {
	svc     auth.Service
	cookies cookieIssuer
}

func NewOTPHandler(svc auth.Service, cookies cookieIssuer) *OTPHandler {
	return &OTPHandler{svc: svc, cookies: cookies}
}

func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req auth.IssueOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.IssueOTP(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "if the address is eligible, a verification code has been sent"})
}

// Verify answers 201 when the code completed a registration and 200 for a login.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	http.SetCookie(w, h.cookies.Cookie(res.Session, r))
	status, msg := http.StatusOK, "logged in"
	if res.Created {
		status, msg = http.StatusCreated, "registered"
	}
	writeJSON(w, status, AuthEnvelope{Message: msg, User: toUserSummary(res.User), ExpiresAt: res.Session.ExpiresAt})
}
