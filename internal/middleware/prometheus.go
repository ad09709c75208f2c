package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
)

// prometheusResponseWriter wraps http.ResponseWriter to capture status code and response size
type prometheusResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (w *prometheusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Write captures the response size
func (w *prometheusResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// PrometheusMiddleware records HTTP metrics for each request. Register it
// with router.Use so the matched route is known when labels are computed.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.HTTPActiveRequests.Inc()
		defer metrics.HTTPActiveRequests.Dec()

		wrapped := &prometheusResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)
		endpoint := normalizeEndpoint(r)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration)
		metrics.HTTPResponseSize.WithLabelValues(r.Method, endpoint, status).Observe(float64(wrapped.written))
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}

// normalizeEndpoint labels requests by route template so repository names
// and keys never become label values.
func normalizeEndpoint(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "/other"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "/other"
	}
	return tpl
}
