// Package domainerrors defines the coded error type shared by services and the
// structured failure taxonomy callers enumerate to end users.
//
// Services return *Error (directly or via one of the structured types below).
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel) that
// services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure independently of its message.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeBadRequest          Code = "bad_request"
	CodeInvariantViolation  Code = "invariant_violation"
	CodeNotFound            Code = "not_found"
	CodeUnauthorized        Code = "unauthorized"
	CodeConflict            Code = "conflict"
	CodeInternal            Code = "internal_error"
	CodeNotInitialized      Code = "not_initialized"
	CodeMissingDocuments    Code = "missing_documents"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeVerificationTimeout Code = "verification_timeout"
	CodeCollaboratorFailure Code = "external_collaborator_failure"
	CodeLimitExceeded       Code = "limit_exceeded"
)

// Error is a coded domain error. Err, when set, is the wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var coded interface{ code() Code }
	if errors.As(err, &coded) {
		return coded.code()
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func (e *Error) code() Code { return e.Code }
