package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbook/clinicbook/internal/appointments"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AdminSummary is the operator dashboard payload.
type AdminSummary struct {
	Doctors      int64                      `json:"doctors"`
	Patients     int64                      `json:"patients"`
	Appointments int64                      `json:"appointments"`
	Latest       []appointments.Appointment `json:"latest_appointments"`
}

// DoctorSummary is the per-doctor dashboard payload. Earnings cover
// completed, paid appointments only.
type DoctorSummary struct {
	EarningsCents int64                      `json:"earnings_cents"`
	Appointments  int64                      `json:"appointments"`
	Patients      int64                      `json:"patients"`
	Latest        []appointments.Appointment `json:"latest_appointments"`
}

// MonthlyPoint is one month of booking volume and earnings.
type MonthlyPoint struct {
	Month         string `json:"month"` // 2006-01
	Bookings      int64  `json:"bookings"`
	EarningsCents int64  `json:"earnings_cents"`
}

// Store computes dashboard aggregates directly in Postgres.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	if db == nil {
		panic("dashboard: querier required")
	}
	return &Store{db: db}
}

const latestColumns = `
	id, doctor_id, patient_id, slot_date, slot_time, amount_cents,
	doctor_snapshot, patient_snapshot, status, payment_state, rating,
	created_at, updated_at
`

// Admin returns platform-wide totals plus the five most recent bookings.
func (s *Store) Admin(ctx context.Context) (*AdminSummary, error) {
	var out AdminSummary
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM doctors),
			(SELECT count(*) FROM patients),
			(SELECT count(*) FROM appointments)`,
	).Scan(&out.Doctors, &out.Patients, &out.Appointments)
	if err != nil {
		return nil, fmt.Errorf("dashboard: admin totals: %w", err)
	}

	latest, err := s.latest(ctx, nil)
	if err != nil {
		return nil, err
	}
	out.Latest = latest
	return &out, nil
}

// Doctor returns one doctor's totals plus their five most recent bookings.
func (s *Store) Doctor(ctx context.Context, doctorID uuid.UUID) (*DoctorSummary, error) {
	var out DoctorSummary
	err := s.db.QueryRow(ctx, `
		SELECT
			coalesce(sum(amount_cents) FILTER (
				WHERE status = 'completed' AND payment_state IN ('card', 'cash')), 0),
			count(*),
			count(DISTINCT patient_id)
		FROM appointments
		WHERE doctor_id = $1`,
		doctorID,
	).Scan(&out.EarningsCents, &out.Appointments, &out.Patients)
	if err != nil {
		return nil, fmt.Errorf("dashboard: doctor totals: %w", err)
	}

	latest, err := s.latest(ctx, &doctorID)
	if err != nil {
		return nil, err
	}
	out.Latest = latest
	return &out, nil
}

// MonthlyBookings returns per-month booking counts and earnings for the last
// twelve months. A nil doctorID aggregates the whole platform.
func (s *Store) MonthlyBookings(ctx context.Context, doctorID *uuid.UUID) ([]MonthlyPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       count(*),
		       coalesce(sum(amount_cents) FILTER (
		           WHERE status = 'completed' AND payment_state IN ('card', 'cash')), 0)
		FROM appointments
		WHERE ($1::uuid IS NULL OR doctor_id = $1)
		  AND created_at >= date_trunc('month', now()) - interval '11 months'
		GROUP BY month
		ORDER BY month`,
		doctorID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: monthly bookings: %w", err)
	}
	defer rows.Close()

	var out []MonthlyPoint
	for rows.Next() {
		var p MonthlyPoint
		if err := rows.Scan(&p.Month, &p.Bookings, &p.EarningsCents); err != nil {
			return nil, fmt.Errorf("dashboard: scan month: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: rows: %w", err)
	}
	return out, nil
}

func (s *Store) latest(ctx context.Context, doctorID *uuid.UUID) ([]appointments.Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+latestColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR doctor_id = $1)
		ORDER BY created_at DESC
		LIMIT 5`,
		doctorID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: latest: %w", err)
	}
	defer rows.Close()

	var out []appointments.Appointment
	for rows.Next() {
		var a appointments.Appointment
		err := rows.Scan(
			&a.ID, &a.DoctorID, &a.PatientID, &a.SlotDate, &a.SlotTime,
			&a.AmountCents, &a.DoctorSnapshot, &a.PatientSnapshot,
			&a.Status, &a.PaymentState, &a.Rating, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("dashboard: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: rows: %w", err)
	}
	return out, nil
}
