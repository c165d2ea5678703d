package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write violates a uniqueness constraint,
	// such as a second open ride for the same user.
	ErrConflict = errors.New("entity conflict")
)
