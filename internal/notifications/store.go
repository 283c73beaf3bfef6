package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another doctor.
var ErrNotFound = errors.New("notifications: not found")

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists doctor notifications in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a notification store backed by pgx.
func NewStore(db Querier) *Store {
	if db == nil {
		panic("notifications: querier required")
	}
	return &Store{db: db}
}

// Insert writes a notification and fills in its generated ID and timestamp.
func (s *Store) Insert(ctx context.Context, n *Notification) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO notifications (doctor_id, appointment_id, kind, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		n.DoctorID, n.AppointmentID, n.Kind, n.Message,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notifications: insert: %w", err)
	}
	return nil
}

// ListForDoctor returns a doctor's notifications, newest first.
func (s *Store) ListForDoctor(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, appointment_id, kind, message, read, created_at
		FROM notifications
		WHERE doctor_id = $1 AND ($2 = false OR read = false)
		ORDER BY created_at DESC
		LIMIT $3`,
		doctorID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.DoctorID, &n.AppointmentID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: rows: %w", err)
	}
	return out, nil
}

// MarkRead marks one notification read. The doctor ID scopes the update so a
// doctor cannot acknowledge another doctor's notifications.
func (s *Store) MarkRead(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = true
		WHERE id = $1 AND doctor_id = $2`,
		id, doctorID)
	if err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification for the doctor as read.
func (s *Store) MarkAllRead(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = true
		WHERE doctor_id = $1 AND read = false`,
		doctorID)
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread returns the doctor's unread notification count.
func (s *Store) CountUnread(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE doctor_id = $1 AND read = false`,
		doctorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notifications: count unread: %w", err)
	}
	return count, nil
}
