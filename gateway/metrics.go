package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agentwire",
	Subsystem: "gateway",
	Name:      "requests_total",
	Help:      "HTTP requests handled, by path and status code.",
}, []string{"path", "code"})

// countRequests records one sample per request after the handler runs.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metricRequests.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
	})
}
