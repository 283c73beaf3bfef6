package appointments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// PaymentState tracks how (and whether) an appointment has been paid.
type PaymentState string

const (
	PaymentUnpaid      PaymentState = "unpaid"
	PaymentCardPending PaymentState = "card_pending"
	PaymentCard        PaymentState = "card"
	PaymentCash        PaymentState = "cash"
)

// Paid reports whether the appointment has a settled payment.
func (p PaymentState) Paid() bool {
	return p == PaymentCard || p == PaymentCash
}

// Appointment is a booking record. Doctor and patient view data are
// snapshotted at creation time and never resynchronized.
type Appointment struct {
	ID              uuid.UUID       `json:"id"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	SlotDate        string          `json:"slot_date"`
	SlotTime        string          `json:"slot_time"`
	AmountCents     int64           `json:"amount_cents"`
	DoctorSnapshot  json.RawMessage `json:"doctor_snapshot,omitempty"`
	PatientSnapshot json.RawMessage `json:"patient_snapshot,omitempty"`
	Status          Status          `json:"status"`
	PaymentState    PaymentState    `json:"payment_state"`
	Rating          *int16          `json:"rating,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DoctorView is the doctor data frozen into an appointment snapshot.
type DoctorView struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
	Degree     string    `json:"degree,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	FeeCents   int64     `json:"fee_cents"`
}

// PatientView is the patient data frozen into an appointment snapshot.
type PatientView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
}

// slotDateFormat and slotTimeFormat pin the accepted wire formats for slots.
const (
	slotDateFormat = "2006-01-02"
	slotTimeFormat = "15:04"
)

// NormalizeSlot validates and normalizes a slot date/time pair.
func NormalizeSlot(slotDate, slotTime string) (string, string, error) {
	d, err := time.Parse(slotDateFormat, slotDate)
	if err != nil {
		return "", "", ErrInvalidSlot
	}
	tm, err := time.Parse(slotTimeFormat, slotTime)
	if err != nil {
		return "", "", ErrInvalidSlot
	}
	return d.Format(slotDateFormat), tm.Format(slotTimeFormat), nil
}

// ListFilter narrows appointment listings.
type ListFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    Status
	Limit     int
	Offset    int
}
