// Package domainerrors provides coded errors for the service layer.
//
// Stores report infrastructure facts with pkg/platform/sentinel errors;
// services translate those into coded domain errors so transports and tests
// can branch on the code without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable identifiers: transports
// map them to status codes and tests assert on them.
type Code string

const (
	// CodeInvalidInput marks validation failures on caller-supplied values.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks malformed requests before validation is possible.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks operations against records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks attempts to create a record that already exists.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks callers lacking the permission an operation
	// requires (wrong issuer, non-owner, non-self).
	CodeUnauthorized Code = "unauthorized"
	// CodeOutOfRange marks index-based access past the end of a sequence.
	CodeOutOfRange Code = "out_of_range"
	// CodeAlreadyRevoked marks revocation of a credential whose validity
	// flag was already cleared. Revocation is one-way, so this is terminal.
	CodeAlreadyRevoked Code = "already_revoked"
	// CodeInvariantViolation marks illegal record state transitions.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout marks operations abandoned because their context expired.
	CodeTimeout Code = "timeout"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It wraps an optional cause so errors.Is and
// errors.As keep working across layers.
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

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates a cause with a code and message. A nil cause yields nil so
// call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Err
		domainErr = nil
	}
	return false
}

// Is is a readability alias for HasCode at call sites that branch on codes.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
