package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORS lets the storefront and admin frontends call the API with credentials.
// Idempotency-Key must be allowed or browsers cannot retry checkout safely.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After", idempotencyReplayHeader},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute).Seconds()),
	})
}
