package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/internal/events"
	"github.com/serenbook/platform/pkg/logging"
)

// SessionVerifier reads the processor's view of a checkout session.
type SessionVerifier interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}

// ReconcileResult summarizes one reconciliation sweep.
type ReconcileResult struct {
	Checked   int
	Corrected int
	Flagged   int
	Pending   int
	Expired   int
	Failed    int
}

// Reconciler compares internal payment state against the processor and
// corrects drift. The processor is ground truth: if Stripe says money moved,
// the internal record moves to match, never the other way around.
type Reconciler struct {
	store    PaymentStore
	verifier SessionVerifier
	settler  Settler
	outbox   outboxWriter
	grace    time.Duration
	batch    int32
	logger   *logging.Logger
	now      func() time.Time
}

// NewReconciler wires a reconciler. grace is how old a pending payment must be
// before it is swept; zero falls back to 15 minutes.
func NewReconciler(store PaymentStore, verifier SessionVerifier, settler Settler, outbox outboxWriter, grace time.Duration, logger *logging.Logger) *Reconciler {
	if store == nil || verifier == nil || settler == nil || outbox == nil {
		panic("payments: store, verifier, settler, and outbox required")
	}
	if grace <= 0 {
		grace = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:    store,
		verifier: verifier,
		settler:  settler,
		outbox:   outbox,
		grace:    grace,
		batch:    100,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps pending payments older than the grace period. Processor errors
// leave the payment untouched for the next sweep.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.reconcile_sweep")
	defer span.End()

	cutoff := r.now().Add(-r.grace)
	pending, err := r.store.ListUnsettled(ctx, cutoff, r.batch)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	for _, p := range pending {
		result.Checked++
		r.reconcileOne(ctx, p, result)
	}
	span.SetAttributes(
		attribute.Int("serenbook.checked", result.Checked),
		attribute.Int("serenbook.corrected", result.Corrected),
	)
	r.logger.Info("payment reconciliation sweep complete",
		"checked", result.Checked, "corrected", result.Corrected,
		"flagged", result.Flagged, "pending", result.Pending,
		"expired", result.Expired, "failed", result.Failed)
	return result, nil
}

// ReconcilePayment checks one payment against the processor and applies the
// correction if they disagree. Repeating the call after a correction is a
// no-op.
func (r *Reconciler) ReconcilePayment(ctx context.Context, p Payment) (*ReconcileResult, error) {
	result := &ReconcileResult{Checked: 1}
	r.reconcileOne(ctx, p, result)
	return result, nil
}

// ReconcilePaymentByID loads one payment and checks it against the processor,
// regardless of its status or age. Returns ErrPaymentNotFound for unknown IDs.
func (r *Reconciler) ReconcilePaymentByID(ctx context.Context, id uuid.UUID) (*ReconcileResult, error) {
	p, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.ReconcilePayment(ctx, *p)
}

func (r *Reconciler) reconcileOne(ctx context.Context, p Payment, result *ReconcileResult) {
	if p.SessionID == "" {
		r.logger.Warn("payment has no session to verify against", "payment_id", p.ID)
		result.Flagged++
		return
	}

	status, err := r.verifier.GetCheckoutSession(ctx, p.SessionID)
	if err != nil {
		r.logger.Warn("processor lookup failed, leaving payment untouched",
			"payment_id", p.ID, "error", err)
		result.Failed++
		return
	}

	switch {
	case status.Paid() && p.Status == StatusSucceeded:
		if p.ProviderRef == "" {
			// Settled on both sides but the charge reference never landed.
			// Worth an alert, not a state change.
			r.logger.Warn("settled payment missing provider reference",
				"payment_id", p.ID, "session_id", p.SessionID, "payment_intent", status.PaymentIntent)
			result.Flagged++
			return
		}
	case status.Paid():
		changed, err := r.settler.Settle(ctx, p.ID, status.PaymentIntent, "reconciler")
		if err != nil {
			r.logger.Error("drift correction failed", "payment_id", p.ID, "error", err)
			result.Failed++
			return
		}
		if !changed {
			return
		}
		drift := events.PaymentDriftCorrectedV1{
			PaymentID:      p.ID.String(),
			AppointmentID:  p.AppointmentID.String(),
			ProfessionalID: p.ProfessionalID.String(),
			FromStatus:     string(p.Status),
			ToStatus:       string(StatusSucceeded),
			Source:         "reconciler",
		}
		if _, err := r.outbox.Insert(ctx, p.ProfessionalID.String(), events.TypePaymentDrift, drift); err != nil {
			r.logger.Error("failed to enqueue drift event", "payment_id", p.ID, "error", err)
		}
		r.logger.Warn("payment drift corrected",
			"payment_id", p.ID, "from", p.Status, "to", StatusSucceeded)
		result.Corrected++
	case status.Status == "expired":
		r.logger.Info("checkout session expired unpaid",
			"payment_id", p.ID, "session_id", p.SessionID)
		result.Expired++
	default:
		result.Pending++
	}
}
