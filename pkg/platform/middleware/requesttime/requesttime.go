// Package requesttime pins a single "now" per HTTP request so audit records,
// freshness decisions and session expiry all agree.
package requesttime

import (
	"net/http"
	"time"

	"civitas/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
