package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"restaurant-ops-api/pkg/apierror"
)

// NewRecovery returns a middleware that turns handler panics into 500 responses.
func NewRecovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"panic":      err,
						"path":       r.URL.Path,
						"request_id": GetRequestID(r.Context()),
						"stack":      string(debug.Stack()),
					}).Error("recovered from panic")

					writeError(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
