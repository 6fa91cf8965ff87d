package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/pkg/logging"
)

// Settler is the settlement entrypoint the webhook drives.
type Settler interface {
	Settle(ctx context.Context, paymentID uuid.UUID, providerRef, source string) (bool, error)
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// StripeWebhookHandler handles Stripe webhook events for checkout completion.
type StripeWebhookHandler struct {
	webhookSecret string
	payments      PaymentStore
	settler       Settler
	processed     processedTracker
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates a handler for Stripe webhooks.
func NewStripeWebhookHandler(webhookSecret string, payments PaymentStore, settler Settler, processed processedTracker, logger *logging.Logger) *StripeWebhookHandler {
	if payments == nil || settler == nil || processed == nil {
		panic("payments: payment store, settler, and processed tracker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		payments:      payments,
		settler:       settler,
		processed:     processed,
		logger:        logger,
	}
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.webhookSecret, payload, sigHeader) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	// Only checkout.session.completed carries a settlement.
	if evt.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if done, err := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if done {
		w.WriteHeader(http.StatusOK)
		return
	}

	session := evt.Data.Object
	payment, err := h.resolvePayment(r, session)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			h.logger.Warn("stripe webhook for unknown payment",
				"event_id", evt.ID, "session_id", session.ID)
			// Acknowledge to stop retries; reconciliation has nothing to
			// correct for a payment we never opened.
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("payment lookup failed", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	providerRef := session.PaymentIntent
	if providerRef == "" {
		providerRef = session.ID
	}
	if _, err := h.settler.Settle(r.Context(), payment.ID, providerRef, "webhook"); err != nil {
		h.logger.Error("settlement failed", "error", err, "payment_id", payment.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) resolvePayment(r *http.Request, session stripeSessionObject) (*Payment, error) {
	if raw := session.Metadata["payment_id"]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("payments: bad payment_id metadata %q: %w", raw, err)
		}
		return h.payments.GetByID(r.Context(), id)
	}
	return h.payments.GetBySession(r.Context(), session.ID)
}

// stripeWebhookEvent is a Stripe webhook event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeSessionObject `json:"object"`
	} `json:"data"`
}

// stripeSessionObject is the checkout.session object from the webhook.
type stripeSessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

// verifyStripeSignature verifies a Stripe webhook signature.
// Stripe signs with HMAC-SHA256 and sends the signature in the Stripe-Signature
// header as: t=<timestamp>,v1=<signature>[,v0=<test_signature>]
func verifyStripeSignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Reject stale signatures (5 minute tolerance).
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
