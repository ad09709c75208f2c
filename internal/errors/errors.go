package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStorageUnavailable indicates the backing store cannot be reached (503)
	ErrorTypeStorageUnavailable ErrorType = "STORAGE_UNAVAILABLE"
	// ErrorTypeStorageTimeout indicates the backing store did not answer in time (504)
	ErrorTypeStorageTimeout ErrorType = "STORAGE_TIMEOUT"
	// ErrorTypeStorage indicates any other storage operation error (500)
	ErrorTypeStorage ErrorType = "STORAGE_ERROR"
	// ErrorTypeInvalidArgument indicates a malformed repository name or key (400)
	ErrorTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
	// ErrorTypeAuth indicates an authentication/authorization error (401)
	ErrorTypeAuth ErrorType = "AUTH_ERROR"
	// ErrorTypeRateLimit indicates rate limiting (429)
	ErrorTypeRateLimit ErrorType = "RATE_LIMIT_ERROR"
	// ErrorTypeNotFound indicates a resource not found (404)
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeInternal indicates an internal server error (500)
	ErrorTypeInternal ErrorType = "INTERNAL_ERROR"
)

// AppError represents a categorized application error
type AppError struct {
	Type       ErrorType   `json:"type"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return GetStatusCode(e.Type)
}

// ToJSON converts the error to JSON
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

var errorStatusCodes = map[ErrorType]int{
	ErrorTypeStorageUnavailable: http.StatusServiceUnavailable,
	ErrorTypeStorageTimeout:     http.StatusGatewayTimeout,
	ErrorTypeStorage:            http.StatusInternalServerError,
	ErrorTypeInvalidArgument:    http.StatusBadRequest,
	ErrorTypeAuth:               http.StatusUnauthorized,
	ErrorTypeRateLimit:          http.StatusTooManyRequests,
	ErrorTypeNotFound:           http.StatusNotFound,
	ErrorTypeInternal:           http.StatusInternalServerError,
}

// GetStatusCode returns the HTTP status code for an error type
func GetStatusCode(errorType ErrorType) int {
	if code, ok := errorStatusCodes[errorType]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// New creates a new AppError
func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		StatusCode: GetStatusCode(errorType),
	}
}

// NewWithDetails creates a new AppError with additional details
func NewWithDetails(errorType ErrorType, message string, details interface{}) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		Details:    details,
		StatusCode: GetStatusCode(errorType),
	}
}

// Wrap creates a new AppError wrapping an existing error
func Wrap(errorType ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		StatusCode: GetStatusCode(errorType),
		Internal:   err,
	}
}

// AsAppError finds the first AppError in the error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether any AppError in the chain has the given type
func IsType(err error, errorType ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == errorType
}

// IsTimeout reports whether err is a StorageTimeout condition
func IsTimeout(err error) bool {
	return IsType(err, ErrorTypeStorageTimeout)
}

// IsUnavailable reports whether err is a StorageUnavailable condition
func IsUnavailable(err error) bool {
	return IsType(err, ErrorTypeStorageUnavailable)
}

// FromContext classifies a context error raised by a storage call. An
// expired deadline becomes StorageTimeout; cancellation is returned as is
// because the caller went away and there is nothing to report.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return StorageTimeout(op+": deadline exceeded", err)
	}
	return err
}

// IsCanceled reports whether err comes from a canceled context
func IsCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled)
}

// StorageUnavailable creates a storage unavailable error
func StorageUnavailable(message string, err error) *AppError {
	return Wrap(ErrorTypeStorageUnavailable, message, err)
}

// StorageTimeout creates a storage timeout error
func StorageTimeout(message string, err error) *AppError {
	return Wrap(ErrorTypeStorageTimeout, message, err)
}

// StorageError creates a generic storage error
func StorageError(message string, err error) *AppError {
	return Wrap(ErrorTypeStorage, message, err)
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(message string, details interface{}) *AppError {
	return NewWithDetails(ErrorTypeInvalidArgument, message, details)
}

// AuthError creates an authentication error
func AuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

// RateLimitError creates a rate limit error
func RateLimitError(message string, details interface{}) *AppError {
	return NewWithDetails(ErrorTypeRateLimit, message, details)
}

// NotFoundError creates a not found error
func NotFoundError(message string) *AppError {
	return New(ErrorTypeNotFound, message)
}

// InternalError creates an internal error
func InternalError(message string, err error) *AppError {
	return Wrap(ErrorTypeInternal, message, err)
}
