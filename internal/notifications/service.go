package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/clinicbook/clinicbook/internal/appointments"
	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/notify"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.notifications")

// DoctorLookup resolves doctor records for email delivery.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

// Service records in-app notifications and fans them out over email.
//
// Every method is best-effort: failures are logged and swallowed so a broken
// mailbox or a full notifications table never blocks a booking.
type Service struct {
	store          *Store
	email          notify.EmailSender
	doctors        DoctorLookup
	operatorEmails []string
	logger         *logging.Logger
}

// NewService creates a notification service.
func NewService(store *Store, email notify.EmailSender, doctorLookup DoctorLookup, operatorEmails []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:          store,
		email:          email,
		doctors:        doctorLookup,
		operatorEmails: operatorEmails,
		logger:         logger,
	}
}

// AppointmentBooked notifies the doctor that a patient booked a slot.
func (s *Service) AppointmentBooked(ctx context.Context, a *appointments.Appointment) {
	ctx, span := tracer.Start(ctx, "notifications.appointment_booked")
	defer span.End()

	patientName := s.patientName(a)
	message := fmt.Sprintf("%s booked an appointment on %s at %s.", patientName, a.SlotDate, a.SlotTime)
	s.record(ctx, a, KindBooking, message)

	subject := fmt.Sprintf("New appointment · %s %s", a.SlotDate, a.SlotTime)
	body := fmt.Sprintf(`%s

Date: %s
Time: %s
Fee: $%.2f
Appointment ID: %s

— ClinicBook`, message, a.SlotDate, a.SlotTime, float64(a.AmountCents)/100, a.ID)
	s.fanOut(ctx, a.DoctorID, subject, body)
}

// AppointmentRated notifies the doctor that a completed appointment was rated.
func (s *Service) AppointmentRated(ctx context.Context, a *appointments.Appointment, score int16) {
	ctx, span := tracer.Start(ctx, "notifications.appointment_rated")
	defer span.End()

	patientName := s.patientName(a)
	message := fmt.Sprintf("%s rated your %s appointment %d/5.", patientName, a.SlotDate, score)
	s.record(ctx, a, KindRating, message)

	subject := fmt.Sprintf("New rating: %d/5", score)
	body := fmt.Sprintf(`%s

Appointment: %s at %s
Appointment ID: %s

— ClinicBook`, message, a.SlotDate, a.SlotTime, a.ID)
	s.fanOut(ctx, a.DoctorID, subject, body)
}

func (s *Service) record(ctx context.Context, a *appointments.Appointment, kind Kind, message string) {
	if s.store == nil {
		return
	}
	n := &Notification{
		DoctorID:      a.DoctorID,
		AppointmentID: a.ID,
		Kind:          kind,
		Message:       message,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		s.logger.Error("failed to record notification", "error", err, "appointment_id", a.ID, "kind", kind)
	}
}

// fanOut emails the doctor plus any configured operator addresses.
func (s *Service) fanOut(ctx context.Context, doctorID uuid.UUID, subject, body string) {
	if s.email == nil {
		return
	}

	recipients := make([]notify.EmailMessage, 0, len(s.operatorEmails)+1)
	if s.doctors != nil {
		doc, err := s.doctors.GetByID(ctx, doctorID)
		if err != nil {
			s.logger.Error("failed to resolve doctor for notification", "error", err, "doctor_id", doctorID)
		} else if doc.Email != "" {
			recipients = append(recipients, notify.EmailMessage{
				To:      doc.Email,
				ToName:  doc.Name,
				Subject: subject,
				Body:    body,
			})
		}
	}
	for _, op := range s.operatorEmails {
		recipients = append(recipients, notify.EmailMessage{
			To:      op,
			Subject: subject,
			Body:    body,
		})
	}

	for _, msg := range recipients {
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("failed to send notification email", "error", err, "to", msg.To)
		}
	}
}

func (s *Service) patientName(a *appointments.Appointment) string {
	var view appointments.PatientView
	if len(a.PatientSnapshot) > 0 {
		if err := json.Unmarshal(a.PatientSnapshot, &view); err == nil && view.Name != "" {
			return view.Name
		}
	}
	return "A patient"
}

var _ appointments.Notifier = (*Service)(nil)
