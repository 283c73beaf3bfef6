package handlers

import (
	"net/http"

	"github.com/clinicbook/clinicbook/internal/dashboard"
	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// DashboardHandler serves the admin and doctor dashboards.
type DashboardHandler struct {
	store  *dashboard.Store
	logger *logging.Logger
}

func NewDashboardHandler(store *dashboard.Store, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{store: store, logger: logger}
}

// Admin handles GET /admin/dashboard.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Admin(r.Context())
	if err != nil {
		h.logger.Error("failed to build admin dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AdminMonthly handles GET /admin/dashboard/monthly.
func (h *DashboardHandler) AdminMonthly(w http.ResponseWriter, r *http.Request) {
	points, err := h.store.MonthlyBookings(r.Context(), nil)
	if err != nil {
		h.logger.Error("failed to build monthly stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build monthly stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": points})
}

// Doctor handles GET /doctor/dashboard for the authenticated doctor.
func (h *DashboardHandler) Doctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	summary, err := h.store.Doctor(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to build doctor dashboard", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DoctorMonthly handles GET /doctor/dashboard/monthly.
func (h *DashboardHandler) DoctorMonthly(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	points, err := h.store.MonthlyBookings(r.Context(), &doctorID)
	if err != nil {
		h.logger.Error("failed to build monthly stats", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to build monthly stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": points})
}
