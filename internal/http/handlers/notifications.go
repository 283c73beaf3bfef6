package handlers

import (
	"errors"
	"net/http"

	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/internal/notifications"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// NotificationsHandler serves the authenticated doctor's notification feed.
type NotificationsHandler struct {
	store  *notifications.Store
	logger *logging.Logger
}

func NewNotificationsHandler(store *notifications.Store, logger *logging.Logger) *NotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{store: store, logger: logger}
}

// List handles GET /doctor/notifications. Supports ?unread=true.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.store.ListForDoctor(r.Context(), doctorID, unreadOnly, queryInt(r, "limit", 50, 200))
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list, "count": len(list)})
}

// UnreadCount handles GET /doctor/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	count, err := h.store.CountUnread(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to count notifications", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkRead handles POST /doctor/notifications/{notificationID}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	id, ok := uuidParam(r, "notificationID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.store.MarkRead(r.Context(), id, doctorID); err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", "error", err, "notification_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /doctor/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	count, err := h.store.MarkAllRead(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to mark notifications read", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": count})
}
