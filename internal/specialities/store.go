package specialities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no speciality exists for the id.
	ErrNotFound = errors.New("specialities: not found")

	// ErrNameTaken is returned when adding a speciality that already exists.
	ErrNameTaken = errors.New("specialities: name already exists")
)

// Speciality is a medical discipline patients browse doctors by.
type Speciality struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	DoctorCount int64     `json:"doctor_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the speciality catalogue in Postgres.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	if db == nil {
		panic("specialities: querier required")
	}
	return &Store{db: db}
}

// Create adds a speciality to the catalogue.
func (s *Store) Create(ctx context.Context, name, description, imageURL string) (*Speciality, error) {
	sp := &Speciality{Name: name, Description: description, ImageURL: imageURL}
	err := s.db.QueryRow(ctx, `
		INSERT INTO specialities (name, description, image_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		name, description, imageURL,
	).Scan(&sp.ID, &sp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("specialities: create: %w", err)
	}
	return sp, nil
}

// List returns the catalogue with a live doctor count per speciality. The
// count only includes doctors currently accepting bookings.
func (s *Store) List(ctx context.Context) ([]Speciality, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sp.id, sp.name, sp.description, sp.image_url, sp.created_at,
		       count(d.id) FILTER (WHERE d.available) AS doctor_count
		FROM specialities sp
		LEFT JOIN doctors d ON d.speciality = sp.name
		GROUP BY sp.id
		ORDER BY sp.name`)
	if err != nil {
		return nil, fmt.Errorf("specialities: list: %w", err)
	}
	defer rows.Close()

	var out []Speciality
	for rows.Next() {
		var sp Speciality
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.ImageURL, &sp.CreatedAt, &sp.DoctorCount); err != nil {
			return nil, fmt.Errorf("specialities: scan: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("specialities: rows: %w", err)
	}
	return out, nil
}

// Delete removes a speciality from the catalogue. Doctors keep their
// speciality string; only the browse entry disappears.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM specialities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("specialities: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
