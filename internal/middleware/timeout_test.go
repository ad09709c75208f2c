package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineSetsContextDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := Deadline(2 * time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, ok)
	assert.WithinDuration(t, start.Add(2*time.Second), deadline, time.Second)
}

func TestDeadlineExpiresRequestContext(t *testing.T) {
	var ctxErr error
	handler := Deadline(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			ctxErr = r.Context().Err()
		case <-time.After(time.Second):
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestDeadlineDisabled(t *testing.T) {
	var ok bool
	handler := Deadline(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
