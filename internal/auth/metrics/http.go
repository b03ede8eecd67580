package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// Middleware records request count, latency and inflight requests. The
// route label is the matched ServeMux pattern so path parameters do not
// explode cardinality.
func (m *Metrics) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.httpInflight.Inc()
			start := time.Now()

			rec, ok := w.(*slogx.StatusRecorder)
			if !ok {
				rec = &slogx.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
			}

			defer func() {
				m.httpInflight.Dec()
				route := routeLabel(r)
				method := strings.ToUpper(r.Method)
				m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
				m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.Status)).Inc()
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// routeLabel strips the method from a "METHOD /path" pattern. Requests that
// matched nothing share one label.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}
