// Package id provides identifiers for users, accounts and events.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type of every stored row (UUID column).
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, falling back to a random v4.
// v7 keeps primary key inserts roughly sequential in the B-tree.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Less orders ids bytewise; used to take row locks in a stable order.
func Less(a, b ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
