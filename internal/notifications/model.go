package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification for display filtering.
type Kind string

const (
	KindBooking      Kind = "booking"
	KindCancellation Kind = "cancellation"
	KindRating       Kind = "rating"
)

// Notification is an in-app notice shown to a doctor.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Kind          Kind      `json:"kind"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}
