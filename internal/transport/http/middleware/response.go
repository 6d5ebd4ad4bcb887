package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorBody is the JSON error shape shared with the handlers.
type ErrorBody struct {
	Message   string     `json:"message"`
	Error     string     `json:"error"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
