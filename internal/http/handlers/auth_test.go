package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/patients"
)

type memPatientAccounts struct {
	byEmail map[string]*patients.Patient
}

func (m *memPatientAccounts) Create(ctx context.Context, params patients.CreatePatientParams) (*patients.Patient, error) {
	if _, exists := m.byEmail[params.Email]; exists {
		return nil, patients.ErrEmailTaken
	}
	p := &patients.Patient{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
	}
	m.byEmail[params.Email] = p
	return p, nil
}

func (m *memPatientAccounts) GetByEmail(ctx context.Context, email string) (*patients.Patient, error) {
	p, ok := m.byEmail[email]
	if !ok {
		return nil, patients.ErrNotFound
	}
	return p, nil
}

type memDoctorAccounts struct{}

func (memDoctorAccounts) GetByEmail(ctx context.Context, email string) (*doctors.Doctor, error) {
	return nil, doctors.ErrNotFound
}

func newAuthRouter(t *testing.T) chi.Router {
	t.Helper()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := auth.NewService(
		&memPatientAccounts{byEmail: make(map[string]*patients.Patient)},
		memDoctorAccounts{},
		tokens, 4, "admin@clinic.example", "operator-password", nil,
	)
	h := NewAuthHandler(svc, nil)

	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/doctor/login", h.DoctorLogin)
	r.Post("/auth/admin/login", h.AdminLogin)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	router := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/register",
		`{"name":"Jordan Wells","email":"jordan@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = postJSON(t, router, "/auth/login",
		`{"email":"jordan@example.com","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, router, "/auth/login",
		`{"email":"jordan@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/register",
		`{"name":"Jordan","email":"not-an-email","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/auth/register",
		`{"name":"Jordan","email":"jordan@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/auth/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router := newAuthRouter(t)

	body := `{"name":"Jordan Wells","email":"jordan@example.com","password":"s3cret-pass"}`
	rec := postJSON(t, router, "/auth/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/auth/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminLogin(t *testing.T) {
	router := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/admin/login",
		`{"email":"admin@clinic.example","password":"operator-password"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, router, "/auth/admin/login",
		`{"email":"admin@clinic.example","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDoctorLoginUnknownEmail(t *testing.T) {
	router := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/doctor/login",
		`{"email":"ghost@clinic.example","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
