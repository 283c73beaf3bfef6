package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/observability/metrics"
	"github.com/clinicbook/clinicbook/internal/patients"
	"github.com/clinicbook/clinicbook/internal/payments"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.appointments")

// Repository is the persistence surface the service depends on.
type Repository interface {
	Book(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SlotTaken(ctx context.Context, doctorID uuid.UUID, slotDate, slotTime string) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCashPaid(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCardPending(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCardPaid(ctx context.Context, id uuid.UUID) (bool, error)
	Rate(ctx context.Context, a *Appointment, score int16, comment string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	Calendar(ctx context.Context, doctorID uuid.UUID) (map[string][]string, error)
}

// DoctorDirectory resolves doctors for availability and snapshot data.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

// PatientDirectory resolves patients for snapshot data.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// Notifier records and fans out appointment events. Implementations must be
// best-effort: a notification failure never aborts the triggering operation.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment)
	AppointmentRated(ctx context.Context, a *Appointment, score int16)
}

// PaymentProvider creates and settles card payment intents.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params payments.IntentParams) (*payments.Intent, error)
}

// Service is the booking and lifecycle service for appointments.
type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientDirectory
	notifier Notifier
	provider PaymentProvider
	velocity *VelocityGuard
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService constructs the appointment service.
func NewService(
	repo Repository,
	doctorDir DoctorDirectory,
	patientDir PatientDirectory,
	notifier Notifier,
	provider PaymentProvider,
	velocity *VelocityGuard,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if doctorDir == nil || patientDir == nil {
		panic("appointments: doctor and patient directories required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		doctors:  doctorDir,
		patients: patientDir,
		notifier: notifier,
		provider: provider,
		velocity: velocity,
		metrics:  m,
		logger:   logger,
	}
}

// Book creates a scheduled appointment for the slot, snapshotting doctor and
// patient data at booking time.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, slotDate, slotTime string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	start := time.Now()
	span.SetAttributes(
		attribute.String("clinicbook.doctor_id", doctorID.String()),
		attribute.String("clinicbook.patient_id", patientID.String()),
	)

	slotDate, slotTime, err := NormalizeSlot(slotDate, slotTime)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.SlotTaken(ctx, doctorID, slotDate, slotTime)
	if err != nil {
		return nil, err
	}
	if taken {
		s.metrics.ObserveBooking("conflict")
		return nil, ErrSlotConflict
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !doctor.Available {
		s.metrics.ObserveBooking("doctor_unavailable")
		return nil, ErrDoctorUnavailable
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !s.velocity.Allow(ctx, patientID) {
		s.metrics.ObserveBooking("rate_limited")
		return nil, ErrTooManyBookings
	}

	appt := &Appointment{
		DoctorID:        doctorID,
		PatientID:       patientID,
		SlotDate:        slotDate,
		SlotTime:        slotTime,
		AmountCents:     doctor.FeeCents,
		DoctorSnapshot:  mustMarshal(doctorView(doctor)),
		PatientSnapshot: mustMarshal(patientView(patient)),
	}

	if err := s.repo.Book(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveBooking("conflict")
			return nil, ErrSlotConflict
		}
		// One retry with a fresh conflict check before surfacing the failure.
		span.RecordError(err)
		s.logger.Warn("booking tx failed, retrying once", "error", err, "doctor_id", doctorID)
		taken, checkErr := s.repo.SlotTaken(ctx, doctorID, slotDate, slotTime)
		if checkErr != nil {
			return nil, err
		}
		if taken {
			s.metrics.ObserveBooking("conflict")
			return nil, ErrSlotConflict
		}
		if err := s.repo.Book(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotConflict) {
				s.metrics.ObserveBooking("conflict")
				return nil, ErrSlotConflict
			}
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("booked")
	s.metrics.ObserveBookingLatency("booked", time.Since(start).Seconds())
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", doctorID,
		"patient_id", patientID,
		"slot_date", slotDate,
		"slot_time", slotTime,
	)

	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, appt)
	}
	return appt, nil
}

// Cancel transitions an appointment to cancelled and releases its slot.
// When actingPatientID is set the appointment must belong to that patient.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actingPatientID *uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actingPatientID != nil && appt.PatientID != *actingPatientID {
		return ErrUnauthorized
	}
	if err := Guard(appt, TransitionCancel); err != nil {
		return err
	}

	ok, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race; re-read to report the precise state.
		return s.classify(ctx, id, TransitionCancel)
	}
	s.metrics.ObserveTransition("cancel")
	s.logger.Info("appointment cancelled", "appointment_id", id)
	return nil
}

// Complete marks a paid, scheduled appointment as completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "appointments.complete")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Guard(appt, TransitionComplete); err != nil {
		return err
	}

	ok, err := s.repo.Complete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.classify(ctx, id, TransitionComplete)
	}
	s.metrics.ObserveTransition("complete")
	s.logger.Info("appointment completed", "appointment_id", id)
	return nil
}

// RecordCashPayment marks the appointment as payable in person.
func (s *Service) RecordCashPayment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Guard(appt, TransitionCashPayment); err != nil {
		return err
	}
	ok, err := s.repo.MarkCashPaid(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.classify(ctx, id, TransitionCashPayment)
	}
	s.metrics.ObserveTransition("cash_payment")
	return nil
}

// CreateCardPaymentIntent opens a payment intent with the card processor and
// returns its client credentials. The appointment is only marked paid by a
// later ConfirmCardPayment call.
func (s *Service) CreateCardPaymentIntent(ctx context.Context, id uuid.UUID) (*payments.Intent, error) {
	ctx, span := tracer.Start(ctx, "appointments.create_card_intent")
	defer span.End()

	if s.provider == nil {
		return nil, payments.ErrProviderUnavailable
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(appt, TransitionCardPending); err != nil {
		return nil, err
	}

	ok, err := s.repo.MarkCardPending(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.classify(ctx, id, TransitionCardPending)
	}

	intent, err := s.provider.CreateIntent(ctx, payments.IntentParams{
		AppointmentID: appt.ID.String(),
		AmountCents:   appt.AmountCents,
		Description:   fmt.Sprintf("Payment for appointment %s", appt.ID),
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("payment intent creation failed", "error", err, "appointment_id", id)
		return nil, err
	}
	s.metrics.ObserveTransition("card_pending")
	return intent, nil
}

// ConfirmCardPayment settles a card payment after the processor confirms it.
func (s *Service) ConfirmCardPayment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Guard(appt, TransitionCardPaid); err != nil {
		return err
	}
	ok, err := s.repo.MarkCardPaid(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.classify(ctx, id, TransitionCardPaid)
	}
	s.metrics.ObserveTransition("card_paid")
	s.logger.Info("card payment confirmed", "appointment_id", id)
	return nil
}

// Rate records a 1..5 score for a completed appointment, creates the rating
// record and updates the doctor's running average, once per appointment.
func (s *Service) Rate(ctx context.Context, id, patientID uuid.UUID, score int16, comment string) error {
	ctx, span := tracer.Start(ctx, "appointments.rate")
	defer span.End()

	if score < 1 || score > 5 {
		return ErrInvalidScore
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.PatientID != patientID {
		return ErrUnauthorized
	}
	if err := Guard(appt, TransitionRate); err != nil {
		return err
	}

	ok, err := s.repo.Rate(ctx, appt, score, comment)
	if err != nil {
		return err
	}
	if !ok {
		return s.classify(ctx, id, TransitionRate)
	}
	s.metrics.ObserveTransition("rate")
	s.logger.Info("appointment rated", "appointment_id", id, "score", score)

	if s.notifier != nil {
		s.notifier.AppointmentRated(ctx, appt, score)
	}
	return nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.List(ctx, filter)
}

// Calendar returns a doctor's booked-slots map.
func (s *Service) Calendar(ctx context.Context, doctorID uuid.UUID) (map[string][]string, error) {
	return s.repo.Calendar(ctx, doctorID)
}

// classify re-reads an appointment after a conditional update matched no
// rows and returns the guard error for its current state. A concurrent
// transition always leaves the row in a state the guard rejects.
func (s *Service) classify(ctx context.Context, id uuid.UUID, tr Transition) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Guard(appt, tr); err != nil {
		return err
	}
	return fmt.Errorf("appointments: transition %s raced and could not be classified", tr)
}

func doctorView(d *doctors.Doctor) DoctorView {
	return DoctorView{
		ID:         d.ID,
		Name:       d.Name,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		ImageURL:   d.ImageURL,
		FeeCents:   d.FeeCents,
	}
}

func patientView(p *patients.Patient) PatientView {
	return PatientView{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Phone:    p.Phone,
		ImageURL: p.ImageURL,
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Snapshot structs contain only marshalable fields.
		panic(err)
	}
	return data
}
