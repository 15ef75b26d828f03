package device

import "errors"

// Domain-specific errors for registry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a referenced device or pending entry
	// does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrCapacityExceeded is returned when adding a device would exceed
	// the configured maximum.
	ErrCapacityExceeded = errors.New("device: registry at capacity")

	// ErrInvalidRelay is returned for relay numbers outside 1-4.
	ErrInvalidRelay = errors.New("device: relay number must be 1-4")

	// ErrInvalidName is returned for empty or over-length display names.
	ErrInvalidName = errors.New("device: name must be 1-50 characters")

	// ErrAlreadyExists is returned when adding a device whose id is
	// already registered.
	ErrAlreadyExists = errors.New("device: id already registered")
)
