package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinicbook/internal/appointments"
	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/doctors"
	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/internal/patients"
)

// apptRepo is an in-memory appointments.Repository for handler tests.
type apptRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*appointments.Appointment
	slots map[string]bool
}

func newApptRepo() *apptRepo {
	return &apptRepo{
		byID:  make(map[uuid.UUID]*appointments.Appointment),
		slots: make(map[string]bool),
	}
}

func (r *apptRepo) key(doctorID uuid.UUID, date, tm string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, tm)
}

func (r *apptRepo) Book(ctx context.Context, a *appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(a.DoctorID, a.SlotDate, a.SlotTime)
	if r.slots[k] {
		return appointments.ErrSlotConflict
	}
	a.ID = uuid.New()
	a.Status = appointments.StatusScheduled
	a.PaymentState = appointments.PaymentUnpaid
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.byID[a.ID] = a
	r.slots[k] = true
	return nil
}

func (r *apptRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, appointments.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *apptRepo) SlotTaken(ctx context.Context, doctorID uuid.UUID, date, tm string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[r.key(doctorID, date, tm)], nil
}

func (r *apptRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != appointments.StatusScheduled {
		return false, nil
	}
	a.Status = appointments.StatusCancelled
	delete(r.slots, r.key(a.DoctorID, a.SlotDate, a.SlotTime))
	return true, nil
}

func (r *apptRepo) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != appointments.StatusScheduled || !a.PaymentState.Paid() {
		return false, nil
	}
	a.Status = appointments.StatusCompleted
	return true, nil
}

func (r *apptRepo) MarkCashPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status == appointments.StatusCancelled || a.PaymentState.Paid() {
		return false, nil
	}
	a.PaymentState = appointments.PaymentCash
	return true, nil
}

func (r *apptRepo) MarkCardPending(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status == appointments.StatusCancelled || a.PaymentState.Paid() {
		return false, nil
	}
	a.PaymentState = appointments.PaymentCardPending
	return true, nil
}

func (r *apptRepo) MarkCardPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.PaymentState != appointments.PaymentCardPending {
		return false, nil
	}
	a.PaymentState = appointments.PaymentCard
	return true, nil
}

func (r *apptRepo) Rate(ctx context.Context, a *appointments.Appointment, score int16, comment string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok || stored.Status != appointments.StatusCompleted || stored.Rating != nil {
		return false, nil
	}
	stored.Rating = &score
	return true, nil
}

func (r *apptRepo) List(ctx context.Context, filter appointments.ListFilter) ([]*appointments.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*appointments.Appointment
	for _, a := range r.byID {
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != uuid.Nil && a.DoctorID != filter.DoctorID {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (r *apptRepo) Calendar(ctx context.Context, doctorID uuid.UUID) (map[string][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string)
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.Status != appointments.StatusCancelled {
			out[a.SlotDate] = append(out[a.SlotDate], a.SlotTime)
		}
	}
	return out, nil
}

type staticDoctorDir map[uuid.UUID]*doctors.Doctor

func (d staticDoctorDir) GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error) {
	doc, ok := d[id]
	if !ok {
		return nil, doctors.ErrNotFound
	}
	return doc, nil
}

type staticPatientDir map[uuid.UUID]*patients.Patient

func (d staticPatientDir) GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error) {
	p, ok := d[id]
	if !ok {
		return nil, patients.ErrNotFound
	}
	return p, nil
}

type apptFixture struct {
	router    chi.Router
	tokens    *auth.TokenIssuer
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newApptFixture(t *testing.T) *apptFixture {
	t.Helper()

	doctorID := uuid.New()
	patientID := uuid.New()

	svc := appointments.NewService(
		newApptRepo(),
		staticDoctorDir{doctorID: {ID: doctorID, Name: "Dr. Maya Chen", FeeCents: 15000, Available: true}},
		staticPatientDir{patientID: {ID: patientID, Name: "Jordan Wells", Email: "jordan@example.com"}},
		nil, nil, nil, nil, nil,
	)
	h := NewAppointmentsHandler(svc, nil)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.Authenticate(tokens))
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.Book)
			r.Get("/", h.ListMine)
			r.Route("/{appointmentID}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Post("/cancel", h.Cancel)
				r.Post("/rating", h.Rate)
			})
		})
		r.Route("/doctor/appointments/{appointmentID}", func(r chi.Router) {
			r.Post("/complete", h.Complete)
			r.Post("/cash", h.RecordCashPayment)
		})
	})
	return &apptFixture{router: r, tokens: tokens, doctorID: doctorID, patientID: patientID}
}

func (f *apptFixture) do(t *testing.T, method, path, body, subject string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	token, err := f.tokens.Issue(subject, role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apptFixture) bookOne(t *testing.T) string {
	t.Helper()
	body := fmt.Sprintf(`{"doctor_id":%q,"slot_date":"2026-09-10","slot_time":"10:00"}`, f.doctorID)
	rec := f.do(t, http.MethodPost, "/appointments", body, f.patientID.String(), auth.RolePatient)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created appointments.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID.String()
}

func TestBookEndpoint(t *testing.T) {
	f := newApptFixture(t)

	id := f.bookOne(t)
	assert.NotEmpty(t, id)

	// The same slot again conflicts.
	body := fmt.Sprintf(`{"doctor_id":%q,"slot_date":"2026-09-10","slot_time":"10:00"}`, f.doctorID)
	rec := f.do(t, http.MethodPost, "/appointments", body, f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"conflict"`)
}

func TestBookEndpointValidation(t *testing.T) {
	f := newApptFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments",
		`{"slot_date":"2026-09-10","slot_time":"10:00"}`, f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "doctor_id is required")

	body := fmt.Sprintf(`{"doctor_id":%q,"slot_date":"next tuesday","slot_time":"10:00"}`, f.doctorID)
	rec = f.do(t, http.MethodPost, "/appointments", body, f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"validation"`)
}

func TestBookEndpointRequiresToken(t *testing.T) {
	f := newApptFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetEndpointOwnership(t *testing.T) {
	f := newApptFixture(t)
	id := f.bookOne(t)

	rec := f.do(t, http.MethodGet, "/appointments/"+id, "", f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/appointments/"+id, "", uuid.NewString(), auth.RolePatient)
	assert.Equal(t, http.StatusForbidden, rec.Code, "another patient may not read it")

	rec = f.do(t, http.MethodGet, "/appointments/"+id, "", "admin", auth.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code, "admins read any appointment")

	rec = f.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), "", f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	f := newApptFixture(t)
	id := f.bookOne(t)

	rec := f.do(t, http.MethodPost, "/appointments/"+id+"/cancel", "", uuid.NewString(), auth.RolePatient)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/appointments/"+id+"/cancel", "", f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/appointments/"+id+"/cancel", "", f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusConflict, rec.Code, "second cancel conflicts")
}

func TestCompleteAndRateFlow(t *testing.T) {
	f := newApptFixture(t)
	id := f.bookOne(t)

	// Completing before payment fails the precondition.
	rec := f.do(t, http.MethodPost, "/doctor/appointments/"+id+"/complete", "", f.doctorID.String(), auth.RoleDoctor)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"precondition_failed"`)

	// Only the owning doctor can record payments.
	rec = f.do(t, http.MethodPost, "/doctor/appointments/"+id+"/cash", "", uuid.NewString(), auth.RoleDoctor)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/doctor/appointments/"+id+"/cash", "", f.doctorID.String(), auth.RoleDoctor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/doctor/appointments/"+id+"/complete", "", f.doctorID.String(), auth.RoleDoctor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/appointments/"+id+"/rating",
		`{"score":9}`, f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/appointments/"+id+"/rating",
		`{"score":5,"comment":"great visit"}`, f.patientID.String(), auth.RolePatient)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/appointments/"+id+"/rating",
		`{"score":4}`, f.patientID.String(), auth.RolePatient)
	assert.Equal(t, http.StatusConflict, rec.Code, "second rating conflicts")
}

func TestListMineEndpoint(t *testing.T) {
	f := newApptFixture(t)
	f.bookOne(t)

	rec := f.do(t, http.MethodGet, "/appointments", "", f.patientID.String(), auth.RolePatient)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = f.do(t, http.MethodGet, "/appointments", "", uuid.NewString(), auth.RolePatient)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}
