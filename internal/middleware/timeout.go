package middleware

import (
	"net/http"
	"time"
)

// Timeout wraps a handler with an http.TimeoutHandler to protect against
// slow-read/slow-write clients. Long-running streaming endpoints, if any
// are added later, should not be wrapped with this middleware.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"error":"request timeout"}`)
	}
}
