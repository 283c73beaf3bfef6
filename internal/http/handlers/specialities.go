package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicbook/clinicbook/internal/specialities"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// SpecialitiesHandler serves the speciality catalogue.
type SpecialitiesHandler struct {
	store  *specialities.Store
	logger *logging.Logger
}

func NewSpecialitiesHandler(store *specialities.Store, logger *logging.Logger) *SpecialitiesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SpecialitiesHandler{store: store, logger: logger}
}

// List handles GET /specialities.
func (h *SpecialitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list specialities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list specialities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"specialities": list, "count": len(list)})
}

type createSpecialityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Create handles POST /admin/specialities.
func (h *SpecialitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSpecialityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sp, err := h.store.Create(r.Context(), req.Name, req.Description, req.ImageURL)
	if err != nil {
		if errors.Is(err, specialities.ErrNameTaken) {
			writeError(w, http.StatusConflict, "speciality already exists")
			return
		}
		h.logger.Error("failed to create speciality", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// Delete handles DELETE /admin/specialities/{specialityID}.
func (h *SpecialitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "specialityID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid speciality id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, specialities.ErrNotFound) {
			writeError(w, http.StatusNotFound, "speciality not found")
			return
		}
		h.logger.Error("failed to delete speciality", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
