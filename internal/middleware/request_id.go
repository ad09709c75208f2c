package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// ContextKey is a type for context keys
type ContextKey string

// RequestIDKey is the context key for request IDs
const RequestIDKey ContextKey = "request_id"

// RequestIDHeader is the HTTP header for request IDs
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestIDMiddleware tags each request with an ID, reusing a well-formed
// one supplied by the client or a proxy.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = generateRequestID()
		}

		r = r.WithContext(WithRequestID(r.Context(), requestID))
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "req_fallback"
	}
	return "req_" + hex.EncodeToString(bytes)
}

// WithRequestID returns a copy of ctx carrying requestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
