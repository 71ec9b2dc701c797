// Package users holds the User entity.
package users

import (
	"context"
	"strings"
	"unicode/utf8"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
)

// MaxNameLength bounds User.Name.
const MaxNameLength = 200

// User is a registered person.
type User struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// NewUser creates a User with a fresh id.
func NewUser(name string) *User {
	return &User{ID: id.New(), Name: strings.TrimSpace(name)}
}

// Validate checks required fields.
func (u *User) Validate(_ context.Context) error {
	if id.IsNil(u.ID) {
		return apperror.NewValidation("user id is required").WithDetail("field", "id")
	}
	if u.Name == "" {
		return apperror.NewValidation("user name is required").WithDetail("field", "name")
	}
	if utf8.RuneCountInString(u.Name) > MaxNameLength {
		return apperror.NewValidation("user name is too long").
			WithDetail("field", "name").
			WithDetail("max", MaxNameLength)
	}
	return nil
}
