package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestLoggingMiddleware writes one log line per API request.
//
// Conversation turns (/api/query and /api/query/stream) also carry the
// subscriber's user ID so quota complaints can be traced. The bearer
// credential itself is never logged.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// requestLog collects facts learned further down the chain. WithUser fills
// in the user once the credential is resolved.
type requestLog struct {
	mu     sync.Mutex
	userID uuid.UUID
}

type requestLogKey struct{}

// noteUser records the authenticated user on the request's log entry, if
// the request is being logged.
func noteUser(ctx context.Context, id uuid.UUID) {
	if entry, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		entry.mu.Lock()
		entry.userID = id
		entry.mu.Unlock()
	}
}

// Handler returns middleware that logs all API requests except health and
// metrics scrapes.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isQuietPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		entry := &requestLog{}
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, entry)))

		attrs := []any{
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if authz := redactAuthorization(r.Header.Get("Authorization")); authz != "" {
			attrs = append(attrs, "authorization", authz)
		}
		if isConversationPath(r.URL.Path) {
			entry.mu.Lock()
			if entry.userID != uuid.Nil {
				attrs = append(attrs, "user_id", entry.userID.String())
			}
			entry.mu.Unlock()
		}

		if wrapped.statusCode >= 500 {
			m.logger.Warn("request", attrs...)
		} else {
			m.logger.Info("request", attrs...)
		}
	})
}

func isQuietPath(path string) bool {
	return strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/metrics")
}

func isConversationPath(path string) bool {
	return path == "/api/query" || strings.HasPrefix(path, "/api/query/")
}

// redactAuthorization keeps the scheme of an Authorization header and
// drops the credential.
func redactAuthorization(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, _, found := strings.Cut(header, " ")
	if !found {
		return "[REDACTED]"
	}
	return scheme + " [REDACTED]"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed answers through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sensitiveParams are query parameters whose values never reach the log:
// password reset tokens, checkout session IDs and stray credentials.
var sensitiveParams = map[string]struct{}{
	"token":         {},
	"reset_token":   {},
	"code":          {},
	"key":           {},
	"secret":        {},
	"password":      {},
	"api_key":       {},
	"access_token":  {},
	"refresh_token": {},
	"session_id":    {},
}

// sanitizePath renders path and query for logging with sensitive values
// replaced. Parameter order is preserved.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var safe []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if _, ok := sensitiveParams[strings.ToLower(name)]; ok {
			safe = append(safe, key+"=[REDACTED]")
			continue
		}
		safe = append(safe, part)
	}

	if len(safe) == 0 {
		return path
	}
	return path + "?" + strings.Join(safe, "&")
}
