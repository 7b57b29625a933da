package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS answers preflights before authentication runs. The method list matches the routes the
// router registers.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", idempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", replayedHeader},
		MaxAge:           600,
		AllowCredentials: false,
	})

	return handler.Handler
}
