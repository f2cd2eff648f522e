// Package apperrors defines the error taxonomy used across the gateway: every
// error a store, worker, or handler produces is classified into one of a small
// set of kinds so callers can branch on behavior (retry, 404, 409) without
// string-matching messages.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how a caller should react to it.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindNotFound    Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindDuplicateKey Kind = "duplicate_key"
	KindTransient   Kind = "transient"
	KindFatal       Kind = "fatal"
)

// Error wraps an underlying cause with a Kind, an optional machine-readable
// code, and optional structured details surfaced to API clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error's Kind to the status code the intake handlers
// should return.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusBadRequest
	case KindDuplicateKey:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the dispatcher/processor should retry the
// operation that produced this error.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindTransient
}

func newErr(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Validation reports a malformed or missing request field.
func Validation(code, message string) *Error {
	return newErr(KindValidation, code, message, nil)
}

// ValidationWithDetails reports a validation failure with structured context.
func ValidationWithDetails(code, message string, details map[string]interface{}) *Error {
	e := newErr(KindValidation, code, message, nil)
	e.Details = details
	return e
}

// NotFound reports that a referenced resource does not exist.
func NotFound(code, message string) *Error {
	return newErr(KindNotFound, code, message, nil)
}

// InvalidState reports that an operation is not legal from the resource's
// current state (an illegal state-machine transition).
func InvalidState(code, message string) *Error {
	return newErr(KindInvalidState, code, message, nil)
}

// DuplicateKey reports a uniqueness-constraint conflict (e.g. an idempotency
// key that is already recorded).
func DuplicateKey(code, message string) *Error {
	return newErr(KindDuplicateKey, code, message, nil)
}

// Transient wraps a retryable infrastructure failure (DB timeout, connection
// reset, upstream 5xx).
func Transient(code, message string, cause error) *Error {
	return newErr(KindTransient, code, message, cause)
}

// Fatal wraps a non-retryable internal failure.
func Fatal(code, message string, cause error) *Error {
	return newErr(KindFatal, code, message, cause)
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err wraps an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
