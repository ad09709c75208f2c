package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/logging"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
)

// ErrorResponse represents the structure of error responses
type ErrorResponse struct {
	Error     bool        `json:"error"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// SendErrorResponse writes err as a JSON error body with the status from its type.
// Anything that is not an AppError is reported as an internal error without
// leaking its text. A request whose context was canceled is logged at info
// and not counted as an error.
func SendErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.InternalError("An error occurred processing your request", err)
	}

	response := ErrorResponse{
		Error:   true,
		Type:    string(appErr.Type),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	handler := ""
	log := logging.Get()
	if r != nil {
		handler = routeName(r)
		response.RequestID = GetRequestID(r.Context())
		if response.RequestID != "" {
			log = logging.WithRequestID(response.RequestID)
		}
	}

	canceled := !ok && errors.IsCanceled(err)
	if !canceled {
		metrics.RecordError(string(appErr.Type), handler)
	}

	switch {
	case canceled:
		log.Infow("request canceled",
			"handler", handler,
			"error", err,
		)
	case isServerSide(appErr.Type):
		log.Errorw("request failed",
			"type", appErr.Type,
			"message", appErr.Message,
			"error", appErr.Internal,
			"handler", handler,
		)
	default:
		log.Infow("request rejected",
			"type", appErr.Type,
			"message", appErr.Message,
			"handler", handler,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Warnw("failed to encode error response", "error", encodeErr)
	}
}

func isServerSide(t errors.ErrorType) bool {
	switch t {
	case errors.ErrorTypeInternal, errors.ErrorTypeStorage,
		errors.ErrorTypeStorageUnavailable, errors.ErrorTypeStorageTimeout:
		return true
	}
	return false
}

// HandleError is a helper function to handle errors in handlers
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	SendErrorResponse(w, r, err)
}

// routeName returns the matched route template, or the raw path when the
// request did not go through a mux router.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
