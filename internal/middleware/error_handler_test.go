package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSendErrorResponse(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   errors.ErrorType
		expectedMsg    string
	}{
		{
			name:           "storage unavailable",
			err:            errors.StorageUnavailable("key index unavailable", stderrors.New("no hosts")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedType:   errors.ErrorTypeStorageUnavailable,
			expectedMsg:    "key index unavailable",
		},
		{
			name:           "storage timeout wrapped",
			err:            fmt.Errorf("listing: %w", errors.StorageTimeout("key index timed out", nil)),
			expectedStatus: http.StatusGatewayTimeout,
			expectedType:   errors.ErrorTypeStorageTimeout,
			expectedMsg:    "key index timed out",
		},
		{
			name:           "invalid argument",
			err:            errors.InvalidArgument("key must not be empty", nil),
			expectedStatus: http.StatusBadRequest,
			expectedType:   errors.ErrorTypeInvalidArgument,
			expectedMsg:    "key must not be empty",
		},
		{
			name:           "plain error hides its text",
			err:            stderrors.New("secret driver detail"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   errors.ErrorTypeInternal,
			expectedMsg:    "An error occurred processing your request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/repositories/r/keys", nil)
			rec := httptest.NewRecorder()

			SendErrorResponse(rec, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.True(t, resp.Error)
			assert.Equal(t, string(tt.expectedType), resp.Type)
			assert.Equal(t, tt.expectedMsg, resp.Message)
			assert.NotContains(t, rec.Body.String(), "secret driver detail")
		})
	}
}

func TestSendErrorResponseIncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req_0011"))
	rec := httptest.NewRecorder()

	SendErrorResponse(rec, req, errors.NotFoundError("no such route"))

	resp := decodeError(t, rec)
	assert.Equal(t, "req_0011", resp.RequestID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendErrorResponseRecordsRouteTemplate(t *testing.T) {
	metrics.Reset()

	router := mux.NewRouter()
	router.HandleFunc("/repositories/{repository}/keys", func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, r, errors.StorageTimeout("slow", nil))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/repositories/inbox/keys", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.ErrorsTotal.WithLabelValues(string(errors.ErrorTypeStorageTimeout), "/repositories/{repository}/keys"),
	))
}

func TestHandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendErrorResponseCanceledIsNotCounted(t *testing.T) {
	metrics.Reset()

	rec := httptest.NewRecorder()
	SendErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/repositories/r/keys", nil),
		fmt.Errorf("list keys: %w", context.Canceled))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.ErrorsTotal))
}
