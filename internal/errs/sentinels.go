// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., label name taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState indicates an operation not allowed in the entity's
	// current lifecycle state (e.g., pinning a trashed note).
	ErrInvalidState = errors.New("invalid state")
)
