// Package repository implements data access for events, queue entries and
// accounts on top of database/sql.  Sentinel errors shared by more than one
// repository live here so handlers and the engine can branch on them with
// errors.Is.
package repository

import (
	"errors"
	"strings"
)

// ErrEventNotFound is returned when an event id or code does not resolve.
var ErrEventNotFound = errors.New("event not found")

// ErrEntryNotFound is returned when a queue entry id or token does not
// resolve, and by selection methods that found no matching row.
var ErrEntryNotFound = errors.New("queue entry not found")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrSchoolNotFound is returned when a school lookup matches no row.
var ErrSchoolNotFound = errors.New("school not found")

// ErrEmailExists is returned on registration when the email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrEventCodeExists is returned when creating an event whose external
// code is already registered.
var ErrEventCodeExists = errors.New("event code already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by another school or user.  Handlers translate this into
// HTTP 403.
var ErrForbidden = errors.New("forbidden")

// IsDuplicateKey reports whether err is a MySQL duplicate-entry violation
// (error 1062).  Races on the (event, batch, ticket_number) uniqueness
// constraint surface this way and are mapped to a retryable 409.
func IsDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
