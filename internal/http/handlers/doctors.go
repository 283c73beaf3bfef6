package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/doctors"
	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/internal/ratings"
	"github.com/clinicbook/clinicbook/internal/uploads"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// DoctorsHandler serves the public doctor catalogue plus doctor and admin
// profile management.
type DoctorsHandler struct {
	repo    *doctors.PostgresRepository
	cache   *doctors.Cache
	ratings *ratings.Store
	uploads *uploads.Store
	auth    *auth.Service
	logger  *logging.Logger
}

func NewDoctorsHandler(repo *doctors.PostgresRepository, cache *doctors.Cache, ratingStore *ratings.Store, uploadStore *uploads.Store, authSvc *auth.Service, logger *logging.Logger) *DoctorsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorsHandler{
		repo:    repo,
		cache:   cache,
		ratings: ratingStore,
		uploads: uploadStore,
		auth:    authSvc,
		logger:  logger,
	}
}

// List handles GET /doctors. Supports ?speciality=, ?limit=, ?offset=.
func (h *DoctorsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := doctors.ListFilter{
		Speciality: r.URL.Query().Get("speciality"),
		Limit:      queryInt(r, "limit", 50, 100),
		Offset:     queryInt(r, "offset", 0, 1<<30),
	}

	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list doctors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": list, "count": len(list)})
}

// Top handles GET /doctors/top, serving the rating-ordered list through the
// Redis cache when it is warm.
func (h *DoctorsHandler) Top(w http.ResponseWriter, r *http.Request) {
	if cached := h.cache.GetTop(r.Context()); cached != nil {
		writeJSON(w, http.StatusOK, map[string]any{"doctors": cached, "count": len(cached)})
		return
	}

	list, err := h.repo.Top(r.Context(), queryInt(r, "limit", 10, 50))
	if err != nil {
		h.logger.Error("failed to list top doctors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list top doctors")
		return
	}
	h.cache.SetTop(r.Context(), list)
	writeJSON(w, http.StatusOK, map[string]any{"doctors": list, "count": len(list)})
}

// Search handles GET /doctors/search?q=.
func (h *DoctorsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	list, err := h.repo.Search(r.Context(), q, queryInt(r, "limit", 20, 50))
	if err != nil {
		h.logger.Error("doctor search failed", "error", err, "q", q)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": list, "count": len(list)})
}

// Get handles GET /doctors/{doctorID}.
func (h *DoctorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "doctorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	doctor, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		h.logger.Error("failed to get doctor", "error", err, "doctor_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

// Ratings handles GET /doctors/{doctorID}/ratings.
func (h *DoctorsHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "doctorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	list, err := h.ratings.ListByDoctor(r.Context(), id, queryInt(r, "limit", 50, 200))
	if err != nil {
		h.logger.Error("failed to list ratings", "error", err, "doctor_id", id)
		writeError(w, http.StatusInternalServerError, "failed to list ratings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": list, "count": len(list)})
}

type createDoctorRequest struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Speciality string          `json:"speciality"`
	Degree     string          `json:"degree"`
	Experience string          `json:"experience"`
	About      string          `json:"about"`
	FeeCents   int64           `json:"fee_cents"`
	Address    json.RawMessage `json:"address"`
	ImageURL   string          `json:"image_url"`
}

// Create handles POST /admin/doctors.
func (h *DoctorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Speciality == "" || req.FeeCents <= 0 {
		writeError(w, http.StatusBadRequest, "name, email, speciality, and fee_cents are required")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doctor, err := h.repo.Create(r.Context(), doctors.CreateDoctorParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Speciality:   req.Speciality,
		Degree:       req.Degree,
		Experience:   req.Experience,
		About:        req.About,
		FeeCents:     req.FeeCents,
		Address:      req.Address,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, doctors.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("failed to create doctor", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.cache.InvalidateTop(r.Context())
	h.logger.Info("doctor created", "doctor_id", doctor.ID, "speciality", doctor.Speciality)
	writeJSON(w, http.StatusCreated, doctor)
}

type updateDoctorProfileRequest struct {
	FeeCents  *int64          `json:"fee_cents"`
	About     *string         `json:"about"`
	Address   json.RawMessage `json:"address"`
	ImageURL  *string         `json:"image_url"`
	Available *bool           `json:"available"`
}

// UpdateProfile handles PUT /doctor/profile for the authenticated doctor.
func (h *DoctorsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req updateDoctorProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doctor, err := h.repo.UpdateProfile(r.Context(), doctorID, doctors.UpdateProfileParams{
		FeeCents:  req.FeeCents,
		About:     req.About,
		Address:   req.Address,
		ImageURL:  req.ImageURL,
		Available: req.Available,
	})
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		h.logger.Error("failed to update doctor profile", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.cache.InvalidateTop(r.Context())
	writeJSON(w, http.StatusOK, doctor)
}

type setAvailabilityRequest struct {
	Available bool `json:"available"`
}

// SetAvailability handles POST /doctor/availability.
func (h *DoctorsHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetAvailability(r.Context(), doctorID, req.Available); err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		h.logger.Error("failed to set availability", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.cache.InvalidateTop(r.Context())
	h.logger.Info("doctor availability updated", "doctor_id", doctorID, "available", req.Available)
	writeJSON(w, http.StatusOK, map[string]bool{"available": req.Available})
}

// UploadImage handles POST /doctor/image. The body is the raw image;
// Content-Type selects the format.
func (h *DoctorsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httpmiddleware.SubjectID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	if !h.uploads.Enabled() {
		writeError(w, http.StatusNotImplemented, "image uploads are not configured")
		return
	}

	url, err := h.uploads.UploadImage(r.Context(), "doctors", doctorID, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, uploads.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.logger.Error("doctor image upload failed", "error", err, "doctor_id", doctorID)
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	if _, err := h.repo.UpdateProfile(r.Context(), doctorID, doctors.UpdateProfileParams{ImageURL: &url}); err != nil {
		h.logger.Error("failed to persist doctor image url", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > max {
		return def
	}
	return n
}
