// Package errors defines the typed errors shared by the bridge's packages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrClaimShape is returned when a claim is present but does not have the expected shape
	ErrClaimShape = "claim_shape"

	// ErrKeyRetrieval is returned when a signing key set could not be fetched
	ErrKeyRetrieval = "key_retrieval"

	// ErrTokenInvalid is returned when a token fails signature or structural verification
	ErrTokenInvalid = "token_invalid"

	// ErrUnsupportedOperation is returned for writes and unsupported directory queries
	ErrUnsupportedOperation = "unsupported_operation"

	// ErrInvalidArgument is returned when an invalid argument is provided
	ErrInvalidArgument = "invalid_argument"

	// ErrNotFound is returned when a requested directory entry does not exist
	ErrNotFound = "not_found"

	// ErrForbidden is returned when the caller lacks a required role
	ErrForbidden = "forbidden"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// ErrUnsupported is the shared cause of every unsupported operation error.
var ErrUnsupported = errors.New("operation not supported by read-only identity provider")

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewClaimShapeError creates a new claim shape error
func NewClaimShapeError(message string, cause error) *Error {
	return NewError(ErrClaimShape, message, cause)
}

// NewKeyRetrievalError creates a new key retrieval error
func NewKeyRetrievalError(message string, cause error) *Error {
	return NewError(ErrKeyRetrieval, message, cause)
}

// NewTokenInvalidError creates a new token invalid error
func NewTokenInvalidError(message string, cause error) *Error {
	return NewError(ErrTokenInvalid, message, cause)
}

// NewUnsupportedOperationError creates a new unsupported operation error.
// The cause is always ErrUnsupported so callers can match with errors.Is.
func NewUnsupportedOperationError(message string) *Error {
	return NewError(ErrUnsupportedOperation, message, ErrUnsupported)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message, nil)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *Error {
	return NewError(ErrForbidden, message, nil)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// TypeOf returns the type of the first *Error in err's chain, or "" if there is none.
func TypeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsClaimShape checks if the error is a claim shape error
func IsClaimShape(err error) bool {
	return TypeOf(err) == ErrClaimShape
}

// IsKeyRetrieval checks if the error is a key retrieval error
func IsKeyRetrieval(err error) bool {
	return TypeOf(err) == ErrKeyRetrieval
}

// IsTokenInvalid checks if the error is a token invalid error
func IsTokenInvalid(err error) bool {
	return TypeOf(err) == ErrTokenInvalid
}

// IsUnsupportedOperation checks if the error is an unsupported operation error
func IsUnsupportedOperation(err error) bool {
	return TypeOf(err) == ErrUnsupportedOperation
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return TypeOf(err) == ErrInvalidArgument
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrNotFound
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return TypeOf(err) == ErrForbidden
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return TypeOf(err) == ErrInternal
}

// IsAuthentication reports whether err should reject the request as unauthenticated.
func IsAuthentication(err error) bool {
	switch TypeOf(err) {
	case ErrClaimShape, ErrKeyRetrieval, ErrTokenInvalid:
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code the REST layer responds with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrClaimShape, ErrKeyRetrieval, ErrTokenInvalid:
		return http.StatusUnauthorized
	case ErrUnsupportedOperation:
		return http.StatusNotImplemented
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
