package doctors

import "errors"

var (
	// ErrNotFound is returned when no doctor exists for the id or email.
	ErrNotFound = errors.New("doctor not found")

	// ErrEmailTaken is returned when registering a doctor with a used email.
	ErrEmailTaken = errors.New("doctor email already registered")
)
