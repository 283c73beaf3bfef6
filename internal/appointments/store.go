package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbook/clinicbook/internal/ratings"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the store needs; satisfied by *pgxpool.Pool
// and by pgxmock in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments and the booked-slots calendar in Postgres.
//
// The calendar row and the appointment row for a booking are written in one
// transaction, and a partial unique index over non-cancelled appointments
// backs the no-double-booking invariant even when two bookings race past the
// application-level conflict check.
type Store struct {
	pool       PgxPool
	ratingRepo *ratings.Store
	aggregator *ratings.Aggregator
}

// NewStore creates an appointment store backed by pgx.
func NewStore(pool PgxPool, ratingRepo *ratings.Store, aggregator *ratings.Aggregator) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	if aggregator == nil {
		aggregator = ratings.NewAggregator()
	}
	return &Store{pool: pool, ratingRepo: ratingRepo, aggregator: aggregator}
}

const appointmentColumns = `
	id, doctor_id, patient_id, slot_date, slot_time, amount_cents,
	doctor_snapshot, patient_snapshot, status, payment_state, rating,
	created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotDate,
		&a.SlotTime,
		&a.AmountCents,
		&a.DoctorSnapshot,
		&a.PatientSnapshot,
		&a.Status,
		&a.PaymentState,
		&a.Rating,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	return &a, nil
}

// Book inserts the appointment and its calendar row in one transaction.
// A unique violation on either table maps to ErrSlotConflict.
func (s *Store) Book(ctx context.Context, a *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, slot_date, slot_time, amount_cents,
			doctor_snapshot, patient_snapshot, status, payment_state
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', 'unpaid')
		RETURNING created_at, updated_at
	`,
		a.ID,
		a.DoctorID,
		a.PatientID,
		a.SlotDate,
		a.SlotTime,
		a.AmountCents,
		a.DoctorSnapshot,
		a.PatientSnapshot,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	a.Status = StatusScheduled
	a.PaymentState = PaymentUnpaid

	if _, err := tx.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time, appointment_id)
		VALUES ($1, $2, $3, $4)
	`, a.DoctorID, a.SlotDate, a.SlotTime, a.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("appointments: insert calendar row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit booking tx: %w", err)
	}
	return nil
}

// GetByID fetches one appointment.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// SlotTaken reports whether a non-cancelled appointment already occupies the
// slot. Used as the fast-path conflict check before booking; the unique
// index remains the authority under races.
func (s *Store) SlotTaken(ctx context.Context, doctorID uuid.UUID, slotDate, slotTime string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
			  AND status <> 'cancelled'
		)
	`, doctorID, slotDate, slotTime).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("appointments: slot check: %w", err)
	}
	return taken, nil
}

// Cancel transitions scheduled -> cancelled and releases the calendar slot
// in one transaction. Returns false when the appointment was not in a
// cancellable state; the caller re-reads to classify the failure.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("appointments: begin cancel tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM booked_slots WHERE appointment_id = $1`, id); err != nil {
		return false, fmt.Errorf("appointments: release slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("appointments: commit cancel tx: %w", err)
	}
	return true, nil
}

// Complete transitions scheduled -> completed, guarded on a settled payment.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'scheduled' AND payment_state IN ('card', 'cash')
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: complete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCashPaid records an in-person payment.
func (s *Store) MarkCashPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_state = 'cash', updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: mark cash paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCardPending records that a payment intent was issued for the appointment.
func (s *Store) MarkCardPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_state = 'card_pending', updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
		  AND payment_state IN ('unpaid', 'card_pending')
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: mark card pending: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCardPaid settles a card payment after processor confirmation.
func (s *Store) MarkCardPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_state = 'card', updated_at = now()
		WHERE id = $1 AND payment_state <> 'card'
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: mark card paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Rate sets the appointment rating, records the rating row and bumps the
// doctor's running totals, all in one transaction. Returns false when the
// appointment was not in a ratable state.
func (s *Store) Rate(ctx context.Context, a *Appointment, score int16, comment string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("appointments: begin rating tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET rating = $2, updated_at = now()
		WHERE id = $1 AND status = 'completed' AND rating IS NULL
	`, a.ID, score)
	if err != nil {
		return false, fmt.Errorf("appointments: set rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	rec := &ratings.Rating{
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		AppointmentID: a.ID,
		Score:         score,
		Comment:       comment,
	}
	if err := s.ratingRepo.Insert(ctx, tx, rec); err != nil {
		if errors.Is(err, ratings.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}

	if err := s.aggregator.Apply(ctx, tx, a.DoctorID, score); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("appointments: commit rating tx: %w", err)
	}
	return true, nil
}

// List returns appointments matching the filter, newest slot first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ($1::uuid IS NULL OR doctor_id = $1)
		  AND ($2::uuid IS NULL OR patient_id = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY slot_date DESC, slot_time DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := s.pool.Query(ctx, query,
		nullableUUID(filter.DoctorID),
		nullableUUID(filter.PatientID),
		string(filter.Status),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Calendar returns a doctor's booked slots as a date -> times map.
func (s *Store) Calendar(ctx context.Context, doctorID uuid.UUID) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot_date, slot_time
		FROM booked_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, slot_time
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("appointments: load calendar: %w", err)
	}
	defer rows.Close()

	cal := make(map[string][]string)
	for rows.Next() {
		var date, tm string
		if err := rows.Scan(&date, &tm); err != nil {
			return nil, fmt.Errorf("appointments: scan calendar: %w", err)
		}
		cal[date] = append(cal[date], tm)
	}
	return cal, rows.Err()
}

// CalendarMismatches counts divergence between the booked-slots calendar and
// the non-cancelled appointments it mirrors. Zero means the mirror invariant
// holds; exposed for tests and health probes.
func (s *Store) CalendarMismatches(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			(SELECT doctor_id, slot_date, slot_time FROM booked_slots
			 EXCEPT
			 SELECT doctor_id, slot_date, slot_time FROM appointments WHERE status <> 'cancelled')
			UNION ALL
			(SELECT doctor_id, slot_date, slot_time FROM appointments WHERE status <> 'cancelled'
			 EXCEPT
			 SELECT doctor_id, slot_date, slot_time FROM booked_slots)
		) diff
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("appointments: calendar check: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
