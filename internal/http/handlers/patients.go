package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/internal/patients"
	"github.com/clinicbook/clinicbook/internal/uploads"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// PatientsHandler serves the authenticated patient's profile and favorites.
type PatientsHandler struct {
	repo    *patients.PostgresRepository
	uploads *uploads.Store
	logger  *logging.Logger
}

func NewPatientsHandler(repo *patients.PostgresRepository, uploadStore *uploads.Store, logger *logging.Logger) *PatientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{repo: repo, uploads: uploadStore, logger: logger}
}

// Me handles GET /patients/me.
func (h *PatientsHandler) Me(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	patient, err := h.repo.GetByID(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("failed to get patient", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

type updatePatientProfileRequest struct {
	Name      *string         `json:"name"`
	Phone     *string         `json:"phone"`
	Address   json.RawMessage `json:"address"`
	BirthDate *string         `json:"birth_date"`
	Gender    *string         `json:"gender"`
	ImageURL  *string         `json:"image_url"`
}

// UpdateProfile handles PUT /patients/me.
func (h *PatientsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req updatePatientProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patient, err := h.repo.UpdateProfile(r.Context(), patientID, patients.UpdateProfileParams{
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("failed to update patient profile", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// UploadImage handles POST /patients/me/image.
func (h *PatientsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	if !h.uploads.Enabled() {
		writeError(w, http.StatusNotImplemented, "image uploads are not configured")
		return
	}

	url, err := h.uploads.UploadImage(r.Context(), "patients", patientID, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, uploads.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.logger.Error("patient image upload failed", "error", err, "patient_id", patientID)
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	if _, err := h.repo.UpdateProfile(r.Context(), patientID, patients.UpdateProfileParams{ImageURL: &url}); err != nil {
		h.logger.Error("failed to persist patient image url", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

// AddFavorite handles POST /patients/me/favorites/{doctorID}.
func (h *PatientsHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	doctorID, ok := uuidParam(r, "doctorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	if err := h.repo.AddFavorite(r.Context(), patientID, doctorID); err != nil {
		h.logger.Error("failed to add favorite", "error", err, "patient_id", patientID, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFavorite handles DELETE /patients/me/favorites/{doctorID}.
func (h *PatientsHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	doctorID, ok := uuidParam(r, "doctorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	if err := h.repo.RemoveFavorite(r.Context(), patientID, doctorID); err != nil {
		h.logger.Error("failed to remove favorite", "error", err, "patient_id", patientID, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFavorites handles GET /patients/me/favorites.
func (h *PatientsHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	patientID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	ids, err := h.repo.ListFavorites(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list favorites", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctor_ids": ids, "count": len(ids)})
}

// ListPatients handles GET /admin/patients.
func (h *PatientsHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context(), queryInt(r, "limit", 50, 200), queryInt(r, "offset", 0, 1<<30))
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": list, "count": len(list)})
}
