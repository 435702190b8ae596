// Package repository implements data access over MySQL, one repository
// per table. Methods suffixed Tx operate inside a caller-supplied
// transaction; the caller commits or rolls back. Sentinel errors defined
// here let handlers distinguish failure scenarios without inspecting
// driver errors.
package repository

import "errors"

// ErrEmailExists is returned when registering a user with an email that
// is already taken. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into 403.
var ErrForbidden = errors.New("forbidden")
