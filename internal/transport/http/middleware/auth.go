package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/marisec-auth/internal/application/session"
	"github.com/marisec-auth/internal/domain"
)

type contextKey string

const IdentityKey contextKey = "identity"

type sessionVerifier interface {
	Verify(ctx context.Context, token string) (*session.Identity, error)
}

// Auth resolves the session token from the auth_token cookie, or an
// Authorization Bearer header when no cookie is sent, and injects the identity
// into the request context.
func Auth(verifier sessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := verifier.Verify(r.Context(), tokenFromRequest(r))
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), IdentityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the verified session identity from the request context.
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*session.Identity)
	return id, ok
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var expired *session.ExpiredError
	switch {
	case errors.Is(err, session.ErrNoToken):
		writeJSONError(w, http.StatusUnauthorized, ErrorBody{Message: "no token", Error: "no_token"})
	case errors.As(err, &expired):
		at := expired.ExpiredAt.UTC()
		writeJSONError(w, http.StatusUnauthorized, ErrorBody{Message: "token expired", Error: "token_expired", ExpiredAt: &at})
	case errors.Is(err, session.ErrTokenMalformed):
		writeJSONError(w, http.StatusUnauthorized, ErrorBody{Message: "malformed token", Error: "malformed_token"})
	case errors.Is(err, session.ErrUnknownSubject):
		writeJSONError(w, http.StatusNotFound, ErrorBody{Message: "user not found", Error: "user_not_found"})
	case domain.IsConfigError(err):
		slog.ErrorContext(r.Context(), "session verification failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, ErrorBody{
			Message: "database not configured, check the DynamoDB connection settings",
			Error:   "database_not_configured",
		})
	default:
		slog.ErrorContext(r.Context(), "session verification failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, ErrorBody{Message: "internal server error", Error: "internal"})
	}
}
