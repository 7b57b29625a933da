package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"library-lending/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds every request. Handlers see the deadline on r.Context(), so store calls and
// lending transactions are cancelled with the request.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	message, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: "REQUEST_TIMEOUT", Message: "request timed out"},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(message))
	}
}
