package model

import "errors"

var (
	// ErrNotFound marks lookups of unknown sites, boxes, assignments or
	// obligations. Surfaced directly, never retried.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks an overlapping reservation or a horizon-wide
	// materialization clash. Mutations wrapping it leave no partial writes.
	ErrConflict = errors.New("booking conflict")
	// ErrBusinessRule marks state-machine violations such as re-cancelling a
	// cancelled assignment or refunding more than was paid.
	ErrBusinessRule = errors.New("business rule violation")
)
