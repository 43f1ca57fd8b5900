// Package errors carries the typed error taxonomy shared by services and the
// HTTP layer. A Code decides the status, the retry hint and how much of the
// error a caller may see.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeUpstream          Code = "UPSTREAM_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code surfaces outside the process.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// PublicMessage replaces the error message unless ExposeMessage is set.
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

// caller errors describe the request, so their message is safe to return.
func caller(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ExposeMessage: true, DetailsAllowed: details}
}

// server errors stay opaque and are worth retrying.
func server(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: true, DetailsAllowed: details}
}

var taxonomy = map[Code]Metadata{
	CodeValidation:        caller(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:      caller(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:         caller(http.StatusForbidden, "access denied", false),
	CodeNotFound:          caller(http.StatusNotFound, "resource not found", false),
	CodeConflict:          caller(http.StatusConflict, "conflict detected", true),
	CodeInvalidTransition: caller(http.StatusConflict, "state transition not allowed", true),
	CodeIdempotency:       caller(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:         caller(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeInternal:          server(http.StatusInternalServerError, "internal server error", false),
	CodeUpstream:          server(http.StatusInternalServerError, "payment provider unavailable", false),
	CodeDependency:        server(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor falls back to the internal error metadata for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := taxonomy[code]; ok {
		return meta
	}
	return taxonomy[CodeInternal]
}

// Public returns the message a caller may see for err.
func (m Metadata) Public(err *Error) string {
	if m.ExposeMessage && err.Message() != "" {
		return err.Message()
	}
	return m.PublicMessage
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the first typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// CodeOf returns CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}
