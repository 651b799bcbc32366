package entity

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input fails validation
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the record is not in a state that allows the operation
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition is returned when a status change is not permitted from the current status
	ErrInvalidTransition = errors.New("invalid status transition")
)
