package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a host-owned record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a record would violate a unique constraint.
	ErrDuplicate = errors.New("already exists")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
