package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/patients"
)

type fakePatientAccounts struct {
	byEmail map[string]*patients.Patient
}

func (f *fakePatientAccounts) Create(_ context.Context, params patients.CreatePatientParams) (*patients.Patient, error) {
	if _, exists := f.byEmail[params.Email]; exists {
		return nil, patients.ErrEmailTaken
	}
	p := &patients.Patient{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
	}
	f.byEmail[params.Email] = p
	return p, nil
}

func (f *fakePatientAccounts) GetByEmail(_ context.Context, email string) (*patients.Patient, error) {
	p, ok := f.byEmail[email]
	if !ok {
		return nil, patients.ErrNotFound
	}
	return p, nil
}

type fakeDoctorAccounts struct {
	byEmail map[string]*doctors.Doctor
}

func (f *fakeDoctorAccounts) GetByEmail(_ context.Context, email string) (*doctors.Doctor, error) {
	d, ok := f.byEmail[email]
	if !ok {
		return nil, doctors.ErrNotFound
	}
	return d, nil
}

func newTestService(t *testing.T) (*Service, *fakePatientAccounts, *fakeDoctorAccounts) {
	t.Helper()
	patientRepo := &fakePatientAccounts{byEmail: map[string]*patients.Patient{}}
	doctorRepo := &fakeDoctorAccounts{byEmail: map[string]*doctors.Doctor{}}
	tokens := NewTokenIssuer("test-secret", time.Hour)
	svc := NewService(patientRepo, doctorRepo, tokens, bcrypt.MinCost, "admin@clinicbook.example", "admin-password", nil)
	return svc, patientRepo, doctorRepo
}

func TestRegisterAndLoginPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	patient, token, err := svc.RegisterPatient(ctx, "Jane Roe", "jane@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEqual(t, "s3cret-pass", patient.PasswordHash)

	got, loginToken, err := svc.LoginPatient(ctx, "jane@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.ID)
	assert.NotEmpty(t, loginToken)

	claims, err := svc.tokens.Parse(loginToken)
	require.NoError(t, err)
	assert.Equal(t, RolePatient, claims.Role)
	assert.Equal(t, patient.ID.String(), claims.Subject)
}

func TestRegisterPatient_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.RegisterPatient(ctx, "Jane", "not-an-email", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = svc.RegisterPatient(ctx, "Jane", "jane@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLoginPatient_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.RegisterPatient(ctx, "Jane", "jane@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, _, err = svc.LoginPatient(ctx, "jane@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.LoginPatient(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDoctor(t *testing.T) {
	svc, _, doctorRepo := newTestService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("doctor-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	doc := &doctors.Doctor{ID: uuid.New(), Email: "smith@clinic.example", PasswordHash: string(hash)}
	doctorRepo.byEmail[doc.Email] = doc

	got, token, err := svc.LoginDoctor(ctx, "smith@clinic.example", "doctor-pass")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	claims, err := svc.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, claims.Role)
}

func TestLoginAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.LoginAdmin(ctx, "admin@clinicbook.example", "admin-password")
	require.NoError(t, err)

	claims, err := svc.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)

	_, err = svc.LoginAdmin(ctx, "admin@clinicbook.example", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenIssuer_RejectsTampered(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	other := NewTokenIssuer("secret-b", time.Hour)

	token, err := issuer.Issue(uuid.New().String(), RolePatient)
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Nanosecond)
	token, err := issuer.Issue(uuid.New().String(), RolePatient)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
