package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"restaurant-ops-api/pkg/apierror"
)

// publicPaths skip the API key check.
var publicPaths = map[string]bool{
	"/api/v1/health": true,
}

// NewAuthMiddleware creates an API key middleware. The key is read from X-API-Key or a
// Bearer Authorization header. An empty key disables the check.
func NewAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					provided = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if provided == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
