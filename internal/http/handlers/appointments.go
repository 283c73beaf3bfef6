package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/appointments"
	"github.com/clinicbook/clinicbook/internal/auth"
	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// AppointmentsHandler serves the appointment lifecycle endpoints.
type AppointmentsHandler struct {
	svc    *appointments.Service
	logger *logging.Logger
}

func NewAppointmentsHandler(svc *appointments.Service, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{svc: svc, logger: logger}
}

type bookRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	SlotDate string    `json:"slot_date"`
	SlotTime string    `json:"slot_time"`
}

// Book handles POST /appointments for the authenticated patient.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DoctorID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "doctor_id is required")
		return
	}

	appt, err := h.svc.Book(r.Context(), patientID, req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// ListMine handles GET /appointments for the authenticated patient.
func (h *AppointmentsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	h.list(w, r, appointments.ListFilter{PatientID: patientID})
}

// ListForDoctor handles GET /doctor/appointments for the authenticated doctor.
func (h *AppointmentsHandler) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	h.list(w, r, appointments.ListFilter{DoctorID: doctorID})
}

// ListAll handles GET /admin/appointments.
func (h *AppointmentsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, appointments.ListFilter{})
}

func (h *AppointmentsHandler) list(w http.ResponseWriter, r *http.Request, filter appointments.ListFilter) {
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = appointments.Status(status)
	}
	filter.Limit = queryInt(r, "limit", 50, 200)
	filter.Offset = queryInt(r, "offset", 0, 1<<30)

	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list, "count": len(list)})
}

// Get handles GET /appointments/{appointmentID}. Patients and doctors can
// only read their own appointments; admins can read any.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{appointmentID}/cancel. Patients can
// cancel their own appointments; admins can cancel any.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "appointmentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var actingPatient *uuid.UUID
	if claims, ok := httpmiddleware.ClaimsFromContext(r.Context()); ok && claims.Role == auth.RolePatient {
		if patientID, ok := httpmiddleware.SubjectID(r.Context()); ok {
			actingPatient = &patientID
		}
	}

	if err := h.svc.Cancel(r.Context(), id, actingPatient); err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(appointments.StatusCancelled)})
}

// Complete handles POST /doctor/appointments/{appointmentID}/complete.
func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.requireDoctorOwned(w, r)
	if !ok {
		return
	}

	if err := h.svc.Complete(r.Context(), appt.ID); err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(appointments.StatusCompleted)})
}

// RecordCashPayment handles POST /doctor/appointments/{appointmentID}/cash.
func (h *AppointmentsHandler) RecordCashPayment(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.requireDoctorOwned(w, r)
	if !ok {
		return
	}

	if err := h.svc.RecordCashPayment(r.Context(), appt.ID); err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_state": string(appointments.PaymentCash)})
}

// CreateCardPaymentIntent handles POST /appointments/{appointmentID}/payments/card.
func (h *AppointmentsHandler) CreateCardPaymentIntent(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.requirePatientOwned(w, r)
	if !ok {
		return
	}

	intent, err := h.svc.CreateCardPaymentIntent(r.Context(), appt.ID)
	if err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// ConfirmCardPayment handles POST /appointments/{appointmentID}/payments/card/confirm.
func (h *AppointmentsHandler) ConfirmCardPayment(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.requirePatientOwned(w, r)
	if !ok {
		return
	}

	if err := h.svc.ConfirmCardPayment(r.Context(), appt.ID); err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_state": string(appointments.PaymentCard)})
}

type rateRequest struct {
	Score   int16  `json:"score"`
	Comment string `json:"comment"`
}

// Rate handles POST /appointments/{appointmentID}/rating.
func (h *AppointmentsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	id, ok := uuidParam(r, "appointmentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Rate(r.Context(), id, patientID, req.Score, req.Comment); err != nil {
		writeAppointmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int16{"score": req.Score})
}

// Calendar handles GET /doctors/{doctorID}/calendar, returning booked slots
// grouped by date.
func (h *AppointmentsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(r, "doctorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	cal, err := h.svc.Calendar(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to load calendar", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booked_slots": cal})
}

// loadOwned fetches the appointment and enforces that the caller may see it.
func (h *AppointmentsHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	id, ok := uuidParam(r, "appointmentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return nil, false
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppointmentError(w, err)
		return nil, false
	}

	claims, ok := httpmiddleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return nil, false
	}
	subject, _ := httpmiddleware.SubjectID(r.Context())
	switch claims.Role {
	case auth.RoleAdmin:
	case auth.RolePatient:
		if appt.PatientID != subject {
			writeError(w, http.StatusForbidden, "not authorized for this appointment")
			return nil, false
		}
	case auth.RoleDoctor:
		if appt.DoctorID != subject {
			writeError(w, http.StatusForbidden, "not authorized for this appointment")
			return nil, false
		}
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return appt, true
}

func (h *AppointmentsHandler) requirePatientOwned(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return nil, false
	}
	appt, ok := h.fetch(w, r)
	if !ok {
		return nil, false
	}
	if appt.PatientID != patientID {
		writeError(w, http.StatusForbidden, "not authorized for this appointment")
		return nil, false
	}
	return appt, true
}

func (h *AppointmentsHandler) requireDoctorOwned(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return nil, false
	}
	appt, ok := h.fetch(w, r)
	if !ok {
		return nil, false
	}
	if appt.DoctorID != doctorID {
		writeError(w, http.StatusForbidden, "not authorized for this appointment")
		return nil, false
	}
	return appt, true
}

func (h *AppointmentsHandler) fetch(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	id, ok := uuidParam(r, "appointmentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return nil, false
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return nil, false
		}
		h.logger.Error("failed to load appointment", "error", err, "appointment_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return appt, true
}
