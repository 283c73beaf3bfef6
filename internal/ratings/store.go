package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a rating already exists for the appointment.
var ErrDuplicate = errors.New("rating already exists for appointment")

// Querier is the subset of pgx used by the store, satisfied by both a pool
// and a transaction so inserts can join the appointment rating transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists rating records in Postgres.
type Store struct {
	q Querier
}

// NewStore creates a rating store over a pool or transaction.
func NewStore(q Querier) *Store {
	if q == nil {
		panic("ratings: querier required")
	}
	return &Store{q: q}
}

// Insert writes a rating row. The unique index on appointment_id backs the
// at-most-one-rating invariant at the storage layer.
func (s *Store) Insert(ctx context.Context, q Querier, r *Rating) error {
	if q == nil {
		q = s.q
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `
		INSERT INTO ratings (id, doctor_id, patient_id, appointment_id, score, comment)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query,
		r.ID,
		r.DoctorID,
		r.PatientID,
		r.AppointmentID,
		r.Score,
		r.Comment,
	).Scan(&r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("ratings: insert: %w", err)
	}
	return nil
}

// ListByDoctor returns a doctor's ratings newest first, with patient details.
func (s *Store) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]DoctorRating, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT r.id, r.doctor_id, r.patient_id, r.appointment_id, r.score,
		       COALESCE(r.comment, ''), r.created_at,
		       p.name, COALESCE(p.image_url, '')
		FROM ratings r
		JOIN patients p ON p.id = r.patient_id
		WHERE r.doctor_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`
	rows, err := s.q.Query(ctx, query, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("ratings: list by doctor: %w", err)
	}
	defer rows.Close()

	var out []DoctorRating
	for rows.Next() {
		var dr DoctorRating
		if err := rows.Scan(
			&dr.ID,
			&dr.DoctorID,
			&dr.PatientID,
			&dr.AppointmentID,
			&dr.Score,
			&dr.Comment,
			&dr.CreatedAt,
			&dr.PatientName,
			&dr.PatientImage,
		); err != nil {
			return nil, fmt.Errorf("ratings: scan: %w", err)
		}
		out = append(out, dr)
	}
	return out, rows.Err()
}
