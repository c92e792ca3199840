package middleware

import (
	"net/http"
	"time"

	"github.com/sproutwatch/sproutwatch/internal/metrics"
)

// Metrics records request counts and latencies labelled by route pattern.
// Unmatched requests share the "unmatched" label.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := routePattern(r)
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequest(route, r.Method, rw.statusCode, time.Since(start))
	})
}
