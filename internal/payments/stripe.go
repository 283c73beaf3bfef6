package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbook/clinicbook/pkg/logging"
)

var stripeTracer = otel.Tracer("clinicbook.internal.payments.stripe")

// ErrProviderUnavailable is returned when the payment processor cannot be
// reached or rejects the request. Callers surface it as a failed payment
// attempt; it is never retried automatically.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// IntentParams describes a card payment to open with the processor.
type IntentParams struct {
	AppointmentID string
	AmountCents   int64
	Description   string
}

// Intent is the client-facing handle for an open card payment.
type Intent struct {
	ProviderID   string `json:"provider_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// StripeService creates PaymentIntents against the Stripe HTTP API.
type StripeService struct {
	secretKey  string
	currency   string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// NewStripeService creates a Stripe payment service.
func NewStripeService(secretKey, currency string, logger *logging.Logger) *StripeService {
	if logger == nil {
		logger = logging.Default()
	}
	if currency == "" {
		currency = "usd"
	}
	return &StripeService{
		secretKey:  secretKey,
		currency:   strings.ToLower(currency),
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeService) WithBaseURL(baseURL string) *StripeService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun enables dry-run mode (returns fake intents without calling Stripe).
func (s *StripeService) WithDryRun(enabled bool) *StripeService {
	s.dryRun = enabled
	return s
}

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent opens a PaymentIntent for the appointment amount.
func (s *StripeService) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicbook.appointment_id", params.AppointmentID),
		attribute.Int64("clinicbook.amount_cents", params.AmountCents),
	)

	if s.dryRun {
		fakeID := "pi_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("stripe dry run: skipping payment intent creation",
			"appointment_id", params.AppointmentID, "amount_cents", params.AmountCents)
		return &Intent{
			ProviderID:   fakeID,
			ClientSecret: fakeID + "_secret",
			AmountCents:  params.AmountCents,
			Currency:     s.currency,
		}, nil
	}

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", params.AmountCents))
	form.Set("currency", s.currency)
	form.Set("description", params.Description)
	form.Set("metadata[appointment_id]", params.AppointmentID)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("stripe request failed", "error", err, "appointment_id", params.AppointmentID)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	var parsed stripeIntentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		msg := "unexpected status"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		s.logger.Error("stripe rejected payment intent",
			"status", resp.StatusCode, "message", msg,
			"appointment_id", params.AppointmentID)
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, msg)
	}

	s.logger.Info("payment intent created",
		"provider_id", parsed.ID, "appointment_id", params.AppointmentID)
	return &Intent{
		ProviderID:   parsed.ID,
		ClientSecret: parsed.ClientSecret,
		AmountCents:  params.AmountCents,
		Currency:     s.currency,
	}, nil
}
