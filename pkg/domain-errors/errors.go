// Package domainerrors defines the coded error type shared by services,
// stores, and transport adapters.
//
// Services return *Error values so handlers can translate them into HTTP
// responses without inspecting messages. Infrastructure facts (not found,
// conflict) live in pkg/platform/sentinel and are translated by services.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for translation at the transport boundary.
type Code string

// Codes. CodeBadRequest covers undecodable requests, CodeValidation covers
// well-formed requests that fail input rules, CodeInvalidInput is returned by
// domain primitive parsers, and CodeTimeout marks storage transactions aborted
// by deadline or cancellation.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeRateLimited        Code = "rate_limited"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error carries a Code, a client-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code and, when the
// target carries a message, the same message. This lets tests use
// errors.Is(err, New(code, msg)).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in the chain has the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// Is is shorthand for HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// IsDomain reports whether err already carries a domain code.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// MessageOf returns the client-safe message of the outermost *Error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
