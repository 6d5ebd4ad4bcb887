package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/marisec-auth/internal/domain"
)

// httpError maps service errors to status codes. It is the only place that does.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrOTPNotFound):
		writeError(w, http.StatusBadRequest, "otp_not_found", domain.ErrOTPNotFound.Error())
	case errors.Is(err, domain.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, "otp_expired", domain.ErrOTPExpired.Error())
	case errors.Is(err, domain.ErrOTPAttemptsExceeded):
		writeError(w, http.StatusBadRequest, "otp_attempts_exceeded", domain.ErrOTPAttemptsExceeded.Error())
	case errors.Is(err, domain.ErrOTPInvalidCode):
		writeError(w, http.StatusBadRequest, "otp_invalid", domain.ErrOTPInvalidCode.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrDeliveryFailed):
		slog.ErrorContext(r.Context(), "otp delivery failed", "err", err)
		writeError(w, http.StatusBadGateway, "delivery_failed", domain.ErrDeliveryFailed.Error())
	case domain.IsConfigError(err):
		slog.ErrorContext(r.Context(), "durable store not configured", "err", err)
		writeError(w, http.StatusInternalServerError, "database_not_configured",
			"database not configured, check the DynamoDB connection settings")
	case errors.Is(err, domain.ErrStoreUnavailable):
		slog.ErrorContext(r.Context(), "durable store unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
