package errprocess

import (
	"errors"
	"net/http"
)

// Kind classify an application error
type Kind string

const (
	// KindValidation malformed input, never retried
	KindValidation Kind = "VALIDATION"
	// KindPermissionDenied role or membership rule violated
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	// KindNotFound thread, group or recipient does not exist
	KindNotFound Kind = "NOT_FOUND"
	// KindTransient connection drop or delivery failure
	KindTransient Kind = "TRANSIENT_TRANSPORT"
	// KindInternal storage or unexpected failure
	KindInternal Kind = "INTERNAL"
)

// AppError error carrying a Kind and the original cause
type AppError struct {
	Kind    Kind
	Message string
	Origin  error
}

func (e *AppError) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Origin
}

// New create an AppError
func New(kind Kind, message string, origin error) *AppError {
	return &AppError{Kind: kind, Message: message, Origin: origin}
}

// Validation create a validation error
func Validation(message string) error {
	return New(KindValidation, message, nil)
}

// PermissionDenied create a permission denied error
func PermissionDenied(message string) error {
	return New(KindPermissionDenied, message, nil)
}

// NotFound create a not found error
func NotFound(message string) error {
	return New(KindNotFound, message, nil)
}

// Transient create a transport error
func Transient(message string, origin error) error {
	return New(KindTransient, message, origin)
}

// Internal wrap a storage failure
func Internal(message string, origin error) error {
	return New(KindInternal, message, origin)
}

// KindOf return the Kind of err, KindInternal when err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is report whether err carries kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus map err to a response status.
// NotFound answers 403 so callers cannot tell whether the resource exists.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermissionDenied, KindNotFound:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage message safe to return to the caller
func PublicMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "internal error"
	}
	switch appErr.Kind {
	case KindNotFound, KindPermissionDenied:
		return "permission denied"
	case KindInternal:
		return "internal error"
	default:
		return appErr.Message
	}
}
