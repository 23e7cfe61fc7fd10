package domain

import (
	"strings"

	dErrors "attestry/pkg/domain-errors"
)

// AccountID is the opaque, globally unique caller identity. It keys
// identities, holds credential sequences, and is the principal for every
// authorization check.
//
// Invariant: an AccountID constructed through ParseAccountID is non-empty,
// contains no whitespace, is at most MaxAccountIDLength bytes, and is not
// the zero account.
//
// Usage: construct via ParseAccountID at trust boundaries; direct casting
// bypasses validation.
type AccountID string

// MaxAccountIDLength bounds account identifiers so they stay usable as
// storage keys and log attributes.
const MaxAccountIDLength = 128

// ZeroAccount is the null account identifier. It is never a valid principal
// and is rejected wherever an account is required.
const ZeroAccount AccountID = ""

// ParseAccountID constructs an AccountID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, the zero
// account, contains whitespace, or exceeds MaxAccountIDLength.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return ZeroAccount, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	if len(s) > MaxAccountIDLength {
		return ZeroAccount, dErrors.New(dErrors.CodeInvalidInput, "account id exceeds maximum length")
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		return ZeroAccount, dErrors.New(dErrors.CodeInvalidInput, "account id cannot contain whitespace")
	}
	return AccountID(s), nil
}

// IsZero reports whether the account is the null identifier.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

// String returns the string representation of the account identifier.
func (a AccountID) String() string {
	return string(a)
}
