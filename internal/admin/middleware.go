// Package admin exposes the authenticated price-administration endpoints
// and a WebSocket feed of price changes.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = 0

// RequireKey authenticates requests with the x-admin-key shared secret.
// Comparison is constant-time. A server with no key configured refuses
// everything rather than running open.
func RequireKey(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := "admin-" + uuid.New().String()[:8]

			if adminKey == "" {
				slog.Error("ADMIN_KEY not configured, refusing admin request", "request_id", reqID)
				writeError(w, "server admin key not configured", http.StatusInternalServerError)
				return
			}

			key := r.Header.Get("x-admin-key")
			if key == "" {
				slog.Warn("admin request without key", "request_id", reqID, "path", r.URL.Path)
				writeError(w, "admin key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				slog.Warn("admin request with invalid key", "request_id", reqID, "path", r.URL.Path)
				writeError(w, "access denied", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), requestIDKey, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestID returns the admin request tag set by RequireKey.
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
