package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/appointments"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppointmentError maps service errors to HTTP statuses via their
// stable error kind, so clients never see raw storage errors.
func writeAppointmentError(w http.ResponseWriter, err error) {
	kind := appointments.KindOf(err)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch kind {
	case appointments.KindNotFound:
		status = http.StatusNotFound
	case appointments.KindConflict:
		status = http.StatusConflict
	case appointments.KindPreconditionFailed:
		status = http.StatusUnprocessableEntity
	case appointments.KindUnauthorized:
		status = http.StatusForbidden
	case appointments.KindValidation:
		status = http.StatusBadRequest
	case appointments.KindExternal:
		status = http.StatusBadGateway
	default:
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
