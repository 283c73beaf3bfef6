package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment exists for the id.
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotConflict is returned when the doctor already holds an active
	// appointment for the requested date and time.
	ErrSlotConflict = errors.New("slot is already booked")

	// ErrDoctorUnavailable is returned when the doctor is not accepting bookings.
	ErrDoctorUnavailable = errors.New("doctor is not available")

	// ErrAlreadyCancelled is returned for operations on a cancelled appointment.
	ErrAlreadyCancelled = errors.New("appointment is cancelled")

	// ErrAlreadyCompleted is returned for operations on a completed appointment.
	ErrAlreadyCompleted = errors.New("appointment is already completed")

	// ErrPaymentRequired is returned when completing an unpaid appointment.
	ErrPaymentRequired = errors.New("appointment has not been paid for")

	// ErrAlreadyPaid is returned when confirming a card payment twice.
	ErrAlreadyPaid = errors.New("appointment is already paid by card")

	// ErrNotCompleted is returned when rating an appointment that has not happened.
	ErrNotCompleted = errors.New("appointment is not completed")

	// ErrAlreadyRated is returned when an appointment already carries a rating.
	ErrAlreadyRated = errors.New("appointment is already rated")

	// ErrInvalidScore is returned for rating scores outside 1..5.
	ErrInvalidScore = errors.New("rating score must be between 1 and 5")

	// ErrUnauthorized is returned when a patient acts on another patient's appointment.
	ErrUnauthorized = errors.New("not authorized for this appointment")

	// ErrInvalidSlot is returned for malformed slot date or time values.
	ErrInvalidSlot = errors.New("invalid slot date or time")

	// ErrTooManyBookings is returned when the per-patient booking cap is hit.
	ErrTooManyBookings = errors.New("too many booking attempts, try again later")
)

// Kind is a stable machine-readable error category exposed to clients.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindUnauthorized       Kind = "unauthorized"
	KindValidation         Kind = "validation"
	KindExternal           Kind = "external_service_failure"
	KindInternal           Kind = "internal"
)

// KindOf maps a service error to its client-facing category. Unknown errors
// map to KindInternal so storage-layer text never leaks to clients.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrAlreadyRated),
		errors.Is(err, ErrTooManyBookings):
		return KindConflict
	case errors.Is(err, ErrDoctorUnavailable),
		errors.Is(err, ErrPaymentRequired),
		errors.Is(err, ErrNotCompleted):
		return KindPreconditionFailed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidScore), errors.Is(err, ErrInvalidSlot):
		return KindValidation
	default:
		return KindInternal
	}
}
