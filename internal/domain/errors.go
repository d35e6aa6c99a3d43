package domain

import "errors"

// Sentinel errors shared across storage and API layers.
var (
	// ErrNotFound indicates the requested entity does not exist for the
	// given tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the caller supplied an unusable value.
	ErrInvalidInput = errors.New("invalid input")
)
