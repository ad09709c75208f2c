package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddleware(t *testing.T) {
	metrics.Reset()

	router := mux.NewRouter()
	router.Use(PrometheusMiddleware)
	router.HandleFunc("/repositories/{repository}/keys", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/repositories/{repository}/keys/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPut)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/repositories/inbox/keys", http.StatusOK},
		{http.MethodGet, "/repositories/spam/keys", http.StatusOK},
		{http.MethodPut, "/repositories/inbox/keys/k1", http.StatusNoContent},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/repositories/{repository}/keys", "200"),
	))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("PUT", "/repositories/{repository}/keys/{key}", "204"),
	))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.HTTPActiveRequests))
	// repository names never become label values
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.HTTPRequestsTotal))
}

func TestNormalizeEndpointWithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/repositories/inbox/keys", nil)
	assert.Equal(t, "/other", normalizeEndpoint(req))
}

func TestPrometheusResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &prometheusResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusAccepted)
	n, err := w.Write([]byte("hello"))

	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusAccepted, w.statusCode)
	assert.Equal(t, int64(5), w.written)
}
