package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics records request latency labelled by the matched route pattern,
// so path parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.HTTPDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(statusOf(ww))).
				Observe(time.Since(start).Seconds())
		})
	}
}
