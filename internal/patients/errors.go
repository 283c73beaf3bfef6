package patients

import "errors"

var (
	// ErrNotFound is returned when no patient exists for the id or email.
	ErrNotFound = errors.New("patient not found")

	// ErrEmailTaken is returned when registering with a used email.
	ErrEmailTaken = errors.New("patient email already registered")
)
