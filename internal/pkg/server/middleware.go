package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/anicoll/doorbell-integration/pkg/hasher"
	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-Key"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	logger := zap.L()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info(r.RequestURI,
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// APIKeyMiddleware checks the X-API-Key header, or a bearer token, against a bcrypt hash.
// An empty hash disables the check. /api/health is always open.
func APIKeyMiddleware(hash string) func(http.Handler) http.Handler {
	logger := zap.L()
	return func(next http.Handler) http.Handler {
		if hash == "" {
			logger.Warn("no api key hash configured, control api is unauthenticated")
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if key == "" || !hasher.APIKeyMatches(key, hash) {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid api key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
