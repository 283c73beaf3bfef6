package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"

	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/patients"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.auth")

var (
	// ErrInvalidCredentials is returned for any failed login. It deliberately
	// does not distinguish unknown accounts from wrong passwords.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidEmail is returned when a registration email does not parse.
	ErrInvalidEmail = errors.New("auth: invalid email address")

	// ErrWeakPassword is returned when a registration password is too short.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
)

// PatientAccounts is the patient repository surface the auth service needs.
type PatientAccounts interface {
	Create(ctx context.Context, params patients.CreatePatientParams) (*patients.Patient, error)
	GetByEmail(ctx context.Context, email string) (*patients.Patient, error)
}

// DoctorAccounts is the doctor repository surface the auth service needs.
type DoctorAccounts interface {
	GetByEmail(ctx context.Context, email string) (*doctors.Doctor, error)
}

// Service registers and authenticates patients, doctors, and the admin
// operator account.
type Service struct {
	patients      PatientAccounts
	doctors       DoctorAccounts
	tokens        *TokenIssuer
	bcryptCost    int
	adminEmail    string
	adminPassword string
	logger        *logging.Logger
}

// NewService creates an auth service.
func NewService(patientRepo PatientAccounts, doctorRepo DoctorAccounts, tokens *TokenIssuer, bcryptCost int, adminEmail, adminPassword string, logger *logging.Logger) *Service {
	if tokens == nil {
		panic("auth: token issuer required")
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		patients:      patientRepo,
		doctors:       doctorRepo,
		tokens:        tokens,
		bcryptCost:    bcryptCost,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		logger:        logger,
	}
}

// RegisterPatient creates a patient account and returns a session token.
func (s *Service) RegisterPatient(ctx context.Context, name, email, password string) (*patients.Patient, string, error) {
	ctx, span := tracer.Start(ctx, "auth.register_patient")
	defer span.End()

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	patient, err := s.patients.Create(ctx, patients.CreatePatientParams{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(patient.ID.String(), RolePatient)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("patient registered", "patient_id", patient.ID)
	return patient, token, nil
}

// LoginPatient authenticates a patient and returns a session token.
func (s *Service) LoginPatient(ctx context.Context, email, password string) (*patients.Patient, string, error) {
	ctx, span := tracer.Start(ctx, "auth.login_patient")
	defer span.End()

	patient, err := s.patients.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(patient.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(patient.ID.String(), RolePatient)
	if err != nil {
		return nil, "", err
	}
	return patient, token, nil
}

// LoginDoctor authenticates a doctor and returns a session token.
func (s *Service) LoginDoctor(ctx context.Context, email, password string) (*doctors.Doctor, string, error) {
	ctx, span := tracer.Start(ctx, "auth.login_doctor")
	defer span.End()

	doctor, err := s.doctors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(doctor.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(doctor.ID.String(), RoleDoctor)
	if err != nil {
		return nil, "", err
	}
	return doctor, token, nil
}

// LoginAdmin authenticates the operator account configured via environment.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (string, error) {
	_, span := tracer.Start(ctx, "auth.login_admin")
	defer span.End()

	if s.adminEmail == "" || s.adminPassword == "" {
		return "", ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	if !emailOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue("admin", RoleAdmin)
}

// HashPassword hashes a password at the service's configured cost. Used when
// the admin provisions doctor accounts.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
