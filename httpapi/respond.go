package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelfolio/authcore"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps Engine errors onto the HTTP taxonomy: validation 400,
// rate/attempt 429, unknown account 404, infrastructure 500. Raw store and
// transport errors never reach the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrInvalidEmail):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid email address"})
	case errors.Is(err, authcore.ErrCodeInvalid):
		body := map[string]any{"error": "invalid verification code"}
		if remaining, ok := authcore.RemainingAttempts(err); ok {
			body["remainingAttempts"] = remaining
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, authcore.ErrNoActiveCode):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no active verification code"})
	case errors.Is(err, authcore.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "account not found"})
	case errors.Is(err, authcore.ErrCodeOutstanding):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "a code was already sent; wait for it to expire"})
	case errors.Is(err, authcore.ErrAttemptsExceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many attempts; request a new code after expiry"})
	case errors.Is(err, authcore.ErrRequestThrottled):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many requests"})
	case errors.Is(err, authcore.ErrNotificationFailed):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to send verification code"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}
