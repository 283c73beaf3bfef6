package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinicbook/internal/appointments"
	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/notify"
)

type recordingSender struct {
	sent []notify.EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg notify.EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type fakeDoctorLookup struct {
	doctor *doctors.Doctor
	err    error
}

func (f *fakeDoctorLookup) GetByID(context.Context, uuid.UUID) (*doctors.Doctor, error) {
	return f.doctor, f.err
}

func testAppointment(t *testing.T) *appointments.Appointment {
	t.Helper()
	snapshot, err := json.Marshal(appointments.PatientView{
		ID:   uuid.New(),
		Name: "Jane Roe",
	})
	require.NoError(t, err)
	return &appointments.Appointment{
		ID:              uuid.New(),
		DoctorID:        uuid.New(),
		PatientID:       uuid.New(),
		SlotDate:        "2026-09-10",
		SlotTime:        "14:30",
		AmountCents:     5000,
		PatientSnapshot: snapshot,
		Status:          appointments.StatusScheduled,
		PaymentState:    appointments.PaymentUnpaid,
	}
}

func TestAppointmentBooked_RecordsAndEmails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := testAppointment(t)
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(appt.DoctorID, appt.ID, KindBooking, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), appt.CreatedAt))

	sender := &recordingSender{}
	lookup := &fakeDoctorLookup{doctor: &doctors.Doctor{
		ID:    appt.DoctorID,
		Name:  "Dr. Smith",
		Email: "smith@clinic.example",
	}}
	svc := NewService(NewStore(mock), sender, lookup, []string{"ops@clinicbook.example"}, nil)

	svc.AppointmentBooked(context.Background(), appt)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "smith@clinic.example", sender.sent[0].To)
	assert.Equal(t, "ops@clinicbook.example", sender.sent[1].To)
	assert.Contains(t, sender.sent[0].Body, "Jane Roe")
	assert.Contains(t, sender.sent[0].Body, "2026-09-10")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRated_BestEffortOnFailures(t *testing.T) {
	appt := testAppointment(t)
	sender := &recordingSender{err: errors.New("smtp down")}
	lookup := &fakeDoctorLookup{err: errors.New("db down")}
	svc := NewService(nil, sender, lookup, []string{"ops@clinicbook.example"}, nil)

	// Must not panic or surface errors even when every dependency fails.
	assert.NotPanics(t, func() {
		svc.AppointmentRated(context.Background(), appt, 5)
	})
	// Operator email is still attempted after the doctor lookup fails.
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "5/5")
}

func TestPatientNameFallback(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)
	appt := &appointments.Appointment{PatientSnapshot: json.RawMessage(`not-json`)}
	assert.Equal(t, "A patient", svc.patientName(appt))
}
