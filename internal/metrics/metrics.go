package metrics

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	once sync.Once

	// HTTP Metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge
	HTTPResponseSize    *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	// Key index metrics
	KeyIndexOperations        *prometheus.CounterVec
	KeyIndexOperationDuration *prometheus.HistogramVec
	KeysListed                *prometheus.HistogramVec

	// Rate Limit Metrics
	RateLimitHits *prometheus.CounterVec

	// Error Metrics
	ErrorsTotal *prometheus.CounterVec

	goCollector      = collectors.NewGoCollector()
	processCollector = collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})
)

func init() {
	newCollectors()
}

func newCollectors() {
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailkeys_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailkeys_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailkeys_http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailkeys_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	KeyIndexOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailkeys_key_index_operations_total",
			Help: "Total number of key index operations",
		},
		[]string{"backend", "operation", "status"}, // operation: "store", "list", "remove"; status: "success", "error"
	)

	KeyIndexOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailkeys_key_index_operation_duration_seconds",
			Help:    "Latency of key index operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"backend", "operation"},
	)

	KeysListed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailkeys_keys_listed",
			Help:    "Number of keys returned by a single list",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"backend"},
	)

	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailkeys_rate_limit_hits_total",
			Help: "Number of rate limit hits",
		},
		[]string{"action"}, // "allowed" or "denied"
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailkeys_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type", "handler"},
	)
}

func all() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		HTTPActiveRequests,
		HTTPResponseSize,
		HTTPRequestsTotal,
		KeyIndexOperations,
		KeyIndexOperationDuration,
		KeysListed,
		RateLimitHits,
		ErrorsTotal,
	}
}

// Init registers all metrics with the Prometheus registry
func Init() {
	once.Do(func() {
		// Register instead of MustRegister so a second process-level Init is harmless
		for _, c := range all() {
			_ = prometheus.Register(c)
		}

		_ = prometheus.Register(goCollector)
		_ = prometheus.Register(processCollector)
	})
}

// Reset unregisters all metrics and recreates them empty (useful for testing)
func Reset() {
	for _, c := range all() {
		prometheus.Unregister(c)
	}
	prometheus.Unregister(goCollector)
	prometheus.Unregister(processCollector)

	once = sync.Once{}
	newCollectors()
}

// RecordError increments the error counter for a specific error type and handler
func RecordError(errorType string, handler string) {
	if ErrorsTotal != nil {
		ErrorsTotal.WithLabelValues(errorType, handler).Inc()
	}
}

// RecordKeyIndexOperation records the outcome and latency of one key index call
func RecordKeyIndexOperation(backend, operation string, err error, seconds float64) {
	status := "success"
	switch {
	case errors.Is(err, context.Canceled):
		status = "canceled"
	case err != nil:
		status = "error"
	}
	KeyIndexOperations.WithLabelValues(backend, operation, status).Inc()
	KeyIndexOperationDuration.WithLabelValues(backend, operation).Observe(seconds)
}

// RecordKeysListed records how many keys one list returned
func RecordKeysListed(backend string, count int) {
	KeysListed.WithLabelValues(backend).Observe(float64(count))
}
