package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinicbook/internal/ratings"
)

func newStoreForTest(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock, ratings.NewStore(mock), ratings.NewAggregator()), mock
}

func TestStoreBook(t *testing.T) {
	store, mock := newStoreForTest(t)

	appt := &Appointment{
		DoctorID:        uuid.New(),
		PatientID:       uuid.New(),
		SlotDate:        "2026-09-10",
		SlotTime:        "10:00",
		AmountCents:     15000,
		DoctorSnapshot:  []byte(`{"name":"Dr. Chen"}`),
		PatientSnapshot: []byte(`{"name":"Jordan"}`),
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.DoctorID, appt.PatientID, "2026-09-10", "10:00",
			int64(15000), appt.DoctorSnapshot, appt.PatientSnapshot).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs(appt.DoctorID, "2026-09-10", "10:00", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Book(context.Background(), appt))
	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, PaymentUnpaid, appt.PaymentState)
	assert.Equal(t, now, appt.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBookUniqueViolation(t *testing.T) {
	store, mock := newStoreForTest(t)

	appt := &Appointment{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		SlotDate:  "2026-09-10",
		SlotTime:  "10:00",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.DoctorID, appt.PatientID, "2026-09-10", "10:00",
			int64(0), appt.DoctorSnapshot, appt.PatientSnapshot).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_active_slot"})
	mock.ExpectRollback()

	assert.ErrorIs(t, store.Book(context.Background(), appt), ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBookCalendarRowConflict(t *testing.T) {
	store, mock := newStoreForTest(t)

	appt := &Appointment{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		SlotDate:  "2026-09-10",
		SlotTime:  "10:00",
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.DoctorID, appt.PatientID, "2026-09-10", "10:00",
			int64(0), appt.DoctorSnapshot, appt.PatientSnapshot).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs(appt.DoctorID, "2026-09-10", "10:00", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	assert.ErrorIs(t, store.Book(context.Background(), appt), ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetByID(t *testing.T) {
	store, mock := newStoreForTest(t)

	id := uuid.New()
	doctorID := uuid.New()
	patientID := uuid.New()
	now := time.Now()

	cols := []string{
		"id", "doctor_id", "patient_id", "slot_date", "slot_time", "amount_cents",
		"doctor_snapshot", "patient_snapshot", "status", "payment_state", "rating",
		"created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			id, doctorID, patientID, "2026-09-10", "10:00", int64(15000),
			[]byte(`{}`), []byte(`{}`), StatusScheduled, PaymentUnpaid, (*int16)(nil),
			now, now,
		))

	appt, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Nil(t, appt.Rating)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(cols))
	_, err = store.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSlotTaken(t *testing.T) {
	store, mock := newStoreForTest(t)

	doctorID := uuid.New()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(doctorID, "2026-09-10", "10:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := store.SlotTaken(context.Background(), doctorID, "2026-09-10", "10:00")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCancel(t *testing.T) {
	store, mock := newStoreForTest(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM booked_slots").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	ok, err := store.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCancelNotMatched(t *testing.T) {
	store, mock := newStoreForTest(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	ok, err := store.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok, "already cancelled or completed rows match nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreConditionalTransitions(t *testing.T) {
	tests := []struct {
		name string
		call func(s *Store, id uuid.UUID) (bool, error)
	}{
		{"complete", func(s *Store, id uuid.UUID) (bool, error) { return s.Complete(context.Background(), id) }},
		{"cash", func(s *Store, id uuid.UUID) (bool, error) { return s.MarkCashPaid(context.Background(), id) }},
		{"card pending", func(s *Store, id uuid.UUID) (bool, error) { return s.MarkCardPending(context.Background(), id) }},
		{"card paid", func(s *Store, id uuid.UUID) (bool, error) { return s.MarkCardPaid(context.Background(), id) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newStoreForTest(t)
			id := uuid.New()

			mock.ExpectExec("UPDATE appointments").
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			ok, err := tc.call(store, id)
			require.NoError(t, err)
			assert.True(t, ok)

			mock.ExpectExec("UPDATE appointments").
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			ok, err = tc.call(store, id)
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStoreRate(t *testing.T) {
	store, mock := newStoreForTest(t)

	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Status:    StatusCompleted,
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(appt.ID, int16(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO ratings").
		WithArgs(pgxmock.AnyArg(), appt.DoctorID, appt.PatientID, appt.ID, int16(5), "great visit").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec("UPDATE doctors").
		WithArgs(appt.DoctorID, int16(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ok, err := store.Rate(context.Background(), appt, 5, "great visit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRateDuplicate(t *testing.T) {
	store, mock := newStoreForTest(t)

	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Status:    StatusCompleted,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(appt.ID, int16(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO ratings").
		WithArgs(pgxmock.AnyArg(), appt.DoctorID, appt.PatientID, appt.ID, int16(4), "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ratings_appointment_id_key"})
	mock.ExpectRollback()

	ok, err := store.Rate(context.Background(), appt, 4, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreList(t *testing.T) {
	store, mock := newStoreForTest(t)

	doctorID := uuid.New()
	now := time.Now()
	cols := []string{
		"id", "doctor_id", "patient_id", "slot_date", "slot_time", "amount_cents",
		"doctor_snapshot", "patient_snapshot", "status", "payment_state", "rating",
		"created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(&doctorID, (*uuid.UUID)(nil), "", 50, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			uuid.New(), doctorID, uuid.New(), "2026-09-10", "10:00", int64(15000),
			[]byte(`{}`), []byte(`{}`), StatusScheduled, PaymentUnpaid, (*int16)(nil),
			now, now,
		))

	out, err := store.List(context.Background(), ListFilter{DoctorID: doctorID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, doctorID, out[0].DoctorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCalendar(t *testing.T) {
	store, mock := newStoreForTest(t)

	doctorID := uuid.New()
	mock.ExpectQuery("SELECT slot_date, slot_time").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time"}).
			AddRow("2026-09-10", "10:00").
			AddRow("2026-09-10", "14:30").
			AddRow("2026-09-11", "09:00"))

	cal, err := store.Calendar(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"2026-09-10": {"10:00", "14:30"},
		"2026-09-11": {"09:00"},
	}, cal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
