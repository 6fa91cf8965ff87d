package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/pkg/logging"
)

var stripeTracer = otel.Tracer("serenbook.internal.payments.stripe")

// CheckoutParams describes one deposit charge to collect.
type CheckoutParams struct {
	PaymentID      uuid.UUID
	AppointmentID  uuid.UUID
	ProfessionalID uuid.UUID
	AmountCents    int64
	Currency       string
	Description    string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is the provider-side session a patient pays through.
type CheckoutSession struct {
	ID  string
	URL string
}

// SessionStatus is the processor's current view of a checkout session. The
// reconciler treats this as ground truth.
type SessionStatus struct {
	ID            string
	Status        string // open, complete, expired
	PaymentStatus string // paid, unpaid, no_payment_required
	PaymentIntent string
	AmountTotal   int64
	Currency      string
}

// Paid reports whether the processor considers the session settled.
func (s SessionStatus) Paid() bool {
	return s.PaymentStatus == "paid"
}

// StripeClient creates Stripe Checkout Sessions for deposit collection and
// reads session state back during reconciliation.
type StripeClient struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeClient creates a client against the live Stripe API.
func NewStripeClient(secretKey, successURL, cancelURL string, logger *logging.Logger) *StripeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeClient{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateCheckoutSession opens a hosted checkout session for the deposit.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("serenbook.payment_id", params.PaymentID.String()),
		attribute.String("serenbook.appointment_id", params.AppointmentID.String()),
		attribute.Int("serenbook.amount_cents", int(params.AmountCents)),
	)

	successURL := params.SuccessURL
	if successURL == "" {
		successURL = c.successURL
	}
	cancelURL := params.CancelURL
	if cancelURL == "" {
		cancelURL = c.cancelURL
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	description := params.Description
	if description == "" {
		description = "Appointment deposit"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", description)
	form.Set("metadata[payment_id]", params.PaymentID.String())
	form.Set("metadata[appointment_id]", params.AppointmentID.String())
	form.Set("metadata[professional_id]", params.ProfessionalID.String())

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("payments: stripe session response missing id or url")
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// GetCheckoutSession reads the current state of a session from Stripe.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.get_checkout_session")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.session_id", sessionID))

	var session struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
		PaymentIntent string `json:"payment_intent"`
		AmountTotal   int64  `json:"amount_total"`
		Currency      string `json:"currency"`
	}
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &SessionStatus{
		ID:            session.ID,
		Status:        session.Status,
		PaymentStatus: session.PaymentStatus,
		PaymentIntent: session.PaymentIntent,
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
	}, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Stripe-Version", c.apiVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: stripe request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("payments: read stripe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("stripe api error", "status", resp.StatusCode, "path", path, "body", string(raw))
		return fmt.Errorf("payments: stripe status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payments: decode stripe response: %w", err)
	}
	return nil
}
