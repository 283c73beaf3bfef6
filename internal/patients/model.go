package patients

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Patient is a registered app user who books appointments.
type Patient struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Phone        string          `json:"phone,omitempty"`
	Address      json.RawMessage `json:"address,omitempty"`
	BirthDate    string          `json:"birth_date,omitempty"`
	Gender       string          `json:"gender,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreatePatientParams carries the registration fields.
type CreatePatientParams struct {
	Name         string
	Email        string
	PasswordHash string
	ImageURL     string
}

// UpdateProfileParams carries the patient-editable profile fields.
type UpdateProfileParams struct {
	Name      *string
	Phone     *string
	Address   json.RawMessage
	BirthDate *string
	Gender    *string
	ImageURL  *string
}
