package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinicbook/cmd/mainconfig"
	"github.com/clinicbook/clinicbook/internal/api/router"
	"github.com/clinicbook/clinicbook/internal/appointments"
	"github.com/clinicbook/clinicbook/internal/auth"
	appconfig "github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/dashboard"
	"github.com/clinicbook/clinicbook/internal/doctors"
	"github.com/clinicbook/clinicbook/internal/http/handlers"
	"github.com/clinicbook/clinicbook/internal/notifications"
	"github.com/clinicbook/clinicbook/internal/notify"
	"github.com/clinicbook/clinicbook/internal/observability/metrics"
	"github.com/clinicbook/clinicbook/internal/patients"
	"github.com/clinicbook/clinicbook/internal/payments"
	"github.com/clinicbook/clinicbook/internal/ratings"
	"github.com/clinicbook/clinicbook/internal/specialities"
	"github.com/clinicbook/clinicbook/internal/uploads"
	"github.com/clinicbook/clinicbook/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinicbook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	// Stores and repositories
	doctorRepo := doctors.NewPostgresRepository(pool)
	patientRepo := patients.NewPostgresRepository(pool)
	ratingStore := ratings.NewStore(pool)
	aggregator := ratings.NewAggregator()
	appointmentStore := appointments.NewStore(pool, ratingStore, aggregator)
	notificationStore := notifications.NewStore(pool)
	specialityStore := specialities.NewStore(pool)
	dashboardStore := dashboard.NewStore(pool)
	doctorCache := doctors.NewCache(redisClient, 5*time.Minute, logger)

	// Email
	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); sg != nil {
			emailSender = sg
		}
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); ses != nil {
			emailSender = ses
		}
	}
	if emailSender == nil {
		emailSender = notify.NewStubEmailSender(logger)
	}

	// Uploads
	var uploadStore *uploads.Store
	if cfg.UploadsBucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		uploadStore = uploads.NewStore(s3.NewFromConfig(awsCfg), cfg.UploadsBucket, cfg.UploadsBaseURL, logger)
	} else {
		uploadStore = uploads.NewStore(nil, "", "", logger)
	}

	// Payments
	stripe := payments.NewStripeService(cfg.StripeSecretKey, cfg.PaymentCurrency, logger).
		WithDryRun(cfg.StripeDryRun || cfg.StripeSecretKey == "")

	// Services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(patientRepo, doctorRepo, tokens, cfg.BcryptCost, cfg.AdminEmail, cfg.AdminPassword, logger)
	notifier := notifications.NewService(notificationStore, emailSender, doctorRepo, cfg.OperatorEmails, logger)
	velocity := appointments.NewVelocityGuard(redisClient, cfg.MaxBookingsPerPatient,
		time.Duration(cfg.BookingWindowHours)*time.Hour, logger)
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	appointmentSvc := appointments.NewService(
		appointmentStore, doctorRepo, patientRepo, notifier, stripe, velocity, bookingMetrics, logger)

	// Handlers
	routerCfg := &router.Config{
		Logger:             logger,
		Tokens:             tokens,
		Auth:               handlers.NewAuthHandler(authSvc, logger),
		Doctors:            handlers.NewDoctorsHandler(doctorRepo, doctorCache, ratingStore, uploadStore, authSvc, logger),
		Patients:           handlers.NewPatientsHandler(patientRepo, uploadStore, logger),
		Appointments:       handlers.NewAppointmentsHandler(appointmentSvc, logger),
		Notifications:      handlers.NewNotificationsHandler(notificationStore, logger),
		Dashboard:          handlers.NewDashboardHandler(dashboardStore, logger),
		Specialities:       handlers.NewSpecialitiesHandler(specialityStore, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
