package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/grumpyguvner/mailkeys/internal/errors"
	"go.uber.org/zap"
)

// Recovery turns a panicking handler into a 500 response
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)

					SendErrorResponse(w, r, errors.InternalError(
						"An unexpected error occurred",
						fmt.Errorf("panic: %v", rec),
					))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
