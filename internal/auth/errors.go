package auth

import "errors"

// Domain-specific errors for authorization operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrWrongPassword is returned for a bad registration or approval
	// password. It carries no hint of whether the requester is already
	// pending.
	ErrWrongPassword = errors.New("auth: wrong password")

	// ErrNotFound is returned when a referenced pending user does not
	// exist.
	ErrNotFound = errors.New("auth: pending user not found")
)
