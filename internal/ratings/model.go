package ratings

import (
	"time"

	"github.com/google/uuid"
)

// Rating is an immutable score a patient gave for one completed appointment.
type Rating struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Score         int16     `json:"score"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DoctorRating is a rating joined with the rating patient's public details,
// for the doctor ratings listing.
type DoctorRating struct {
	Rating
	PatientName  string `json:"patient_name"`
	PatientImage string `json:"patient_image,omitempty"`
}
