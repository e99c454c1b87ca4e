// Package errors provides the application error model.
// Every failure that crosses a component boundary is classified into one of
// a small, closed set of kinds; the kind drives HTTP status mapping and the
// error_type column of persisted failure logs.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the error classifier shared by all components.
type Kind string

// The closed set of error kinds.
const (
	KindConfigInvalid   Kind = "ConfigInvalid"
	KindTransport       Kind = "transport"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindUpstream5xx     Kind = "upstream_5xx"
	KindMalformed       Kind = "malformed"
	KindEmptyResponse   Kind = "empty_response"
	KindEmptyChangeSet  Kind = "empty_change_set"
	KindPersistence     Kind = "persistence"
	KindCancelled       Kind = "cancelled"
	KindTimeout         Kind = "timeout"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindWrongFileType   Kind = "wrong_file_type"
	KindMissingField    Kind = "missing_field"
	KindInternal        Kind = "internal"
)

// Exit codes for application startup failures
const (
	// ExitCodeConfigValidation indicates configuration validation failure
	ExitCodeConfigValidation = 2
)

// AppError represents an application-level error with kind and context
type AppError struct {
	Kind    Kind   `json:"error"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for the error.
// Only statuses the API surface documents are produced; everything that has
// no caller-actionable mapping collapses to 500.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindMissingField, KindMalformed:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindWrongFileType:
		return http.StatusUnsupportedMediaType
	case KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Common error constructors for convenience

// ErrInternal creates an internal error
func ErrInternal(message string, err error) *AppError {
	return Wrap(KindInternal, message, err)
}

// ErrMissingField creates a missing-field error
func ErrMissingField(message string) *AppError {
	return New(KindMissingField, message)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}

// ErrUnauthorized creates an unauthorized error
func ErrUnauthorized(message string) *AppError {
	return New(KindUnauthorized, message)
}

// ErrConfigInvalid creates a configuration error
func ErrConfigInvalid(message string) *AppError {
	return New(KindConfigInvalid, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError attempts to convert an error to AppError, unwrapping as needed
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err. Plain errors classify as internal;
// nil returns the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
