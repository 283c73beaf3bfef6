package doctors

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Doctor is a bookable practitioner profile.
type Doctor struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Speciality   string          `json:"speciality"`
	Degree       string          `json:"degree,omitempty"`
	Experience   string          `json:"experience,omitempty"`
	About        string          `json:"about,omitempty"`
	FeeCents     int64           `json:"fee_cents"`
	Address      json.RawMessage `json:"address,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Available    bool            `json:"available"`
	RatingSum    int64           `json:"rating_sum"`
	RatingCount  int32           `json:"rating_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AverageRating derives the doctor's mean score from the running totals.
// Returns 0 for an unrated doctor.
func (d *Doctor) AverageRating() float64 {
	if d.RatingCount == 0 {
		return 0
	}
	return float64(d.RatingSum) / float64(d.RatingCount)
}

// MarshalJSON adds the derived average_rating field to the wire form.
func (d *Doctor) MarshalJSON() ([]byte, error) {
	type alias Doctor
	return json.Marshal(struct {
		*alias
		AverageRating float64 `json:"average_rating"`
	}{
		alias:         (*alias)(d),
		AverageRating: d.AverageRating(),
	})
}

// CreateDoctorParams carries the fields for registering a doctor.
type CreateDoctorParams struct {
	Name         string
	Email        string
	PasswordHash string
	Speciality   string
	Degree       string
	Experience   string
	About        string
	FeeCents     int64
	Address      json.RawMessage
	ImageURL     string
}

// UpdateProfileParams carries the doctor-editable profile fields.
type UpdateProfileParams struct {
	FeeCents  *int64
	About     *string
	Address   json.RawMessage
	ImageURL  *string
	Available *bool
}

// ListFilter narrows doctor listings.
type ListFilter struct {
	Speciality string
	Limit      int
	Offset     int
}

// SpecialityCount pairs a speciality with how many doctors practice it.
type SpecialityCount struct {
	Speciality string `json:"speciality"`
	Count      int    `json:"count"`
}
