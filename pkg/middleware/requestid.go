// Package middleware provides the HTTP middleware chain of the search
// service: request ids, CORS, rate limiting, Prometheus metrics and request
// timeouts.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/showsearch/showsearch/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestID propagates an incoming X-Request-ID or assigns a new UUID, and
// stores it in the request context for logging and analytics.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
