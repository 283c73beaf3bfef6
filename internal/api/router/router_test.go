package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/http/handlers"
)

func testConfig() *Config {
	return &Config{
		Tokens:        auth.NewTokenIssuer("test-secret", time.Hour),
		Auth:          handlers.NewAuthHandler(nil, nil),
		Doctors:       handlers.NewDoctorsHandler(nil, nil, nil, nil, nil, nil),
		Patients:      handlers.NewPatientsHandler(nil, nil, nil),
		Appointments:  handlers.NewAppointmentsHandler(nil, nil),
		Notifications: handlers.NewNotificationsHandler(nil, nil),
		Dashboard:     handlers.NewDashboardHandler(nil, nil),
		Specialities:  handlers.NewSpecialitiesHandler(nil, nil),
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := New(testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := New(testConfig())

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/appointments"},
		{http.MethodGet, "/patients/me"},
		{http.MethodGet, "/doctor/appointments"},
		{http.MethodGet, "/doctor/notifications"},
		{http.MethodGet, "/admin/dashboard"},
		{http.MethodPost, "/admin/doctors"},
	}
	for _, tc := range paths {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoleSeparation(t *testing.T) {
	cfg := testConfig()
	r := New(cfg)

	patientToken, err := cfg.Tokens.Issue(uuid.NewString(), auth.RolePatient)
	require.NoError(t, err)

	// A patient token cannot reach doctor or admin surfaces.
	for _, path := range []string{"/doctor/dashboard", "/admin/dashboard"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+patientToken)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.clinicbook.example"}
	r := New(cfg)

	req := httptest.NewRequest(http.MethodOptions, "/doctors", nil)
	req.Header.Set("Origin", "https://app.clinicbook.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.clinicbook.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
