package domain

import (
	"strconv"
	"strings"
	"unicode"

	dErrors "contactgraph/pkg/domain-errors"
)

// maxOwnerScopeLength bounds owner scopes accepted at trust boundaries.
const maxOwnerScopeLength = 128

// ContactID identifies a contact. Values are assigned by the store, are
// strictly positive, and increase monotonically with insertion order.
type ContactID int64

// ParseContactID constructs a ContactID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a base-10
// integer, or not positive.
func ParseContactID(s string) (ContactID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "contact id cannot be empty")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid contact id")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "contact id must be positive")
	}
	return ContactID(n), nil
}

func (id ContactID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsNil returns true for the zero value, which is never assigned by a store.
func (id ContactID) IsNil() bool {
	return id <= 0
}

// OwnerScope is the opaque tenant/owner partition every contact belongs to.
// All store queries are scoped by it; the value itself carries no structure.
type OwnerScope string

// ParseOwnerScope constructs an OwnerScope from external input (token claims,
// CLI flags). Surrounding whitespace is trimmed.
//
// Errors: returns CodeInvalidInput when the value is empty, longer than 128
// characters, or contains control or invisible format characters.
func ParseOwnerScope(s string) (OwnerScope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner scope cannot be empty")
	}
	if len(s) > maxOwnerScopeLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner scope is too long")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "owner scope contains invalid characters")
		}
	}
	return OwnerScope(s), nil
}

func (o OwnerScope) String() string {
	return string(o)
}

func (o OwnerScope) IsNil() bool {
	return o == ""
}
