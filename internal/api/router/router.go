package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/http/handlers"
	httpmiddleware "github.com/clinicbook/clinicbook/internal/http/middleware"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger        *logging.Logger
	Tokens        *auth.TokenIssuer
	Auth          *handlers.AuthHandler
	Doctors       *handlers.DoctorsHandler
	Patients      *handlers.PatientsHandler
	Appointments  *handlers.AppointmentsHandler
	Notifications *handlers.NotificationsHandler
	Dashboard     *handlers.DashboardHandler
	Specialities  *handlers.SpecialitiesHandler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.Auth.Register)
			r.Post("/login", cfg.Auth.Login)
			r.Post("/doctor/login", cfg.Auth.DoctorLogin)
			r.Post("/admin/login", cfg.Auth.AdminLogin)
		})

		public.Route("/doctors", func(r chi.Router) {
			r.Get("/", cfg.Doctors.List)
			r.Get("/top", cfg.Doctors.Top)
			r.Get("/search", cfg.Doctors.Search)
			r.Route("/{doctorID}", func(r chi.Router) {
				r.Get("/", cfg.Doctors.Get)
				r.Get("/ratings", cfg.Doctors.Ratings)
				r.Get("/calendar", cfg.Appointments.Calendar)
			})
		})

		public.Get("/specialities", cfg.Specialities.List)
	})

	// Patient endpoints
	r.Group(func(patient chi.Router) {
		patient.Use(httpmiddleware.Authenticate(cfg.Tokens))
		patient.Use(httpmiddleware.RequireRole(auth.RolePatient))

		patient.Route("/patients/me", func(r chi.Router) {
			r.Get("/", cfg.Patients.Me)
			r.Put("/", cfg.Patients.UpdateProfile)
			r.Post("/image", cfg.Patients.UploadImage)
			r.Get("/favorites", cfg.Patients.ListFavorites)
			r.Post("/favorites/{doctorID}", cfg.Patients.AddFavorite)
			r.Delete("/favorites/{doctorID}", cfg.Patients.RemoveFavorite)
		})

		patient.Route("/appointments", func(r chi.Router) {
			r.Post("/", cfg.Appointments.Book)
			r.Get("/", cfg.Appointments.ListMine)
			r.Route("/{appointmentID}", func(r chi.Router) {
				r.Get("/", cfg.Appointments.Get)
				r.Post("/cancel", cfg.Appointments.Cancel)
				r.Post("/payments/card", cfg.Appointments.CreateCardPaymentIntent)
				r.Post("/payments/card/confirm", cfg.Appointments.ConfirmCardPayment)
				r.Post("/rating", cfg.Appointments.Rate)
			})
		})
	})

	// Doctor endpoints
	r.Route("/doctor", func(doctor chi.Router) {
		doctor.Use(httpmiddleware.Authenticate(cfg.Tokens))
		doctor.Use(httpmiddleware.RequireRole(auth.RoleDoctor))

		doctor.Put("/profile", cfg.Doctors.UpdateProfile)
		doctor.Post("/availability", cfg.Doctors.SetAvailability)
		doctor.Post("/image", cfg.Doctors.UploadImage)

		doctor.Route("/appointments", func(r chi.Router) {
			r.Get("/", cfg.Appointments.ListForDoctor)
			r.Route("/{appointmentID}", func(r chi.Router) {
				r.Get("/", cfg.Appointments.Get)
				r.Post("/complete", cfg.Appointments.Complete)
				r.Post("/cash", cfg.Appointments.RecordCashPayment)
			})
		})

		doctor.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.Notifications.List)
			r.Get("/unread-count", cfg.Notifications.UnreadCount)
			r.Post("/read-all", cfg.Notifications.MarkAllRead)
			r.Post("/{notificationID}/read", cfg.Notifications.MarkRead)
		})

		doctor.Get("/dashboard", cfg.Dashboard.Doctor)
		doctor.Get("/dashboard/monthly", cfg.Dashboard.DoctorMonthly)
	})

	// Admin endpoints
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.Authenticate(cfg.Tokens))
		admin.Use(httpmiddleware.RequireRole(auth.RoleAdmin))

		admin.Post("/doctors", cfg.Doctors.Create)
		admin.Get("/patients", cfg.Patients.ListPatients)

		admin.Route("/appointments", func(r chi.Router) {
			r.Get("/", cfg.Appointments.ListAll)
			r.Get("/{appointmentID}", cfg.Appointments.Get)
			r.Post("/{appointmentID}/cancel", cfg.Appointments.Cancel)
		})

		admin.Route("/specialities", func(r chi.Router) {
			r.Post("/", cfg.Specialities.Create)
			r.Delete("/{specialityID}", cfg.Specialities.Delete)
		})

		admin.Get("/dashboard", cfg.Dashboard.Admin)
		admin.Get("/dashboard/monthly", cfg.Dashboard.AdminMonthly)
	})

	return r
}
