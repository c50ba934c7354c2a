package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// BearerAuth returns middleware that validates the Authorization header
// against the configured admin token using a constant-time comparison.
// An empty configured token rejects every request rather than opening the
// admin surface.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || got == "" {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"unauthorized","code":"AUTH_MISSING_TOKEN"}`, http.StatusUnauthorized)
				return
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"unauthorized","code":"AUTH_INVALID_TOKEN"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
