package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// NewCORS returns middleware that lets the browser frontend at the given
// origins call the API. Credentials travel in the Authorization header, so
// cookies are not allowed cross-origin. An empty origin list disables
// cross-origin access.
func NewCORS(allowedOrigins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         600,
	})
	if len(allowedOrigins) > 0 {
		logger.Info("CORS enabled", "origins", allowedOrigins)
	}
	return c.Handler
}
