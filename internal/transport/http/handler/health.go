package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthResponse answers /health-check/ready. OTPStore names the backend that
// currently serves passcode records ("dynamodb" or "memory").
type HealthResponse struct {
	Message  string `json:"message"`
	OTPStore string `json:"otp_store,omitempty"`
}

type backendReporter interface {
	ActiveBackend() string
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	otpStore backendReporter
}

// NewHealthHandler accepts a nil reporter; ready then omits the backend.
func NewHealthHandler(otpStore backendReporter) *HealthHandler {
	return &HealthHandler{otpStore: otpStore}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		resp := HealthResponse{Message: "ready"}
		if h.otpStore != nil {
			resp.OTPStore = h.otpStore.ActiveBackend()
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "unknown action")
	}
}
