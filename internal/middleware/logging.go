package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogging returns a middleware that logs every request with its status and duration.
func NewLogging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	log = log.WithField("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote":      r.RemoteAddr,
				"status":      wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  GetRequestID(r.Context()),
			})
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				entry.Error("request failed")
			case wrapped.statusCode >= http.StatusBadRequest:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
