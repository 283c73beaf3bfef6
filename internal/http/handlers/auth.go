package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/patients"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	svc    *auth.Service
	logger *logging.Logger
}

func NewAuthHandler(svc *auth.Service, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string            `json:"token"`
	Patient *patients.Patient `json:"patient,omitempty"`
	Doctor  *doctors.Doctor   `json:"doctor,omitempty"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patient, token, err := h.svc.RegisterPatient(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Patient: patient})
}

// Login handles POST /auth/login for patients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patient, token, err := h.svc.LoginPatient(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Patient: patient})
}

// DoctorLogin handles POST /auth/doctor/login.
func (h *AuthHandler) DoctorLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doctor, token, err := h.svc.LoginDoctor(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Doctor: doctor})
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.svc.LoginAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token})
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, patients.ErrEmailTaken), errors.Is(err, doctors.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		h.logger.Error("auth request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
