package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/events"
	"github.com/serenbook/platform/pkg/logging"
)

var paymentsTracer = otel.Tracer("serenbook.internal.payments")

// PaymentStore is the persistence surface the service needs.
type PaymentStore interface {
	Insert(ctx context.Context, p Payment) (*Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetBySession(ctx context.Context, sessionID string) (*Payment, error)
	ListUnsettled(ctx context.Context, before time.Time, limit int32) ([]Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, providerRef string) error
}

// SessionCreator opens hosted checkout sessions.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// AppointmentConfirmer flips appointments to confirmed when deposits settle.
type AppointmentConfirmer interface {
	Confirm(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

// PaymentLinker attaches the payment record to its appointment.
type PaymentLinker interface {
	LinkPayment(ctx context.Context, id, paymentID uuid.UUID) error
}

type outboxWriter interface {
	Insert(ctx context.Context, professionalID string, eventType string, payload any) (uuid.UUID, error)
}

// Service owns the deposit lifecycle: opening checkout sessions and settling
// payments, whether the settlement signal arrives by webhook or by
// reconciliation.
type Service struct {
	store     PaymentStore
	checkout  SessionCreator
	confirmer AppointmentConfirmer
	linker    PaymentLinker
	outbox    outboxWriter
	logger    *logging.Logger
}

// NewService wires the payments service.
func NewService(store PaymentStore, checkout SessionCreator, confirmer AppointmentConfirmer, linker PaymentLinker, outbox outboxWriter, logger *logging.Logger) *Service {
	if store == nil || checkout == nil || confirmer == nil || linker == nil || outbox == nil {
		panic("payments: store, checkout, confirmer, linker, and outbox required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		checkout:  checkout,
		confirmer: confirmer,
		linker:    linker,
		outbox:    outbox,
		logger:    logger,
	}
}

// StartCheckout opens a checkout session for the appointment's deposit and
// records the pending payment. The returned URL is where the patient pays.
func (s *Service) StartCheckout(ctx context.Context, appt appointments.Appointment) (*Payment, string, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.start_checkout")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.appointment_id", appt.ID.String()))

	paymentID := uuid.New()
	session, err := s.checkout.CreateCheckoutSession(ctx, CheckoutParams{
		PaymentID:      paymentID,
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		AmountCents:    appt.CostCents,
	})
	if err != nil {
		return nil, "", err
	}

	payment, err := s.store.Insert(ctx, Payment{
		ID:             paymentID,
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		Provider:       "stripe",
		SessionID:      session.ID,
		AmountCents:    appt.CostCents,
		Currency:       "usd",
		Status:         StatusPending,
	})
	if err != nil {
		s.logger.Error("payment insert failed after session creation",
			"session_id", session.ID, "appointment_id", appt.ID, "error", err)
		return nil, "", err
	}
	if err := s.linker.LinkPayment(ctx, appt.ID, payment.ID); err != nil {
		return nil, "", fmt.Errorf("payments: link to appointment: %w", err)
	}

	s.logger.Info("checkout session opened",
		"payment_id", payment.ID, "appointment_id", appt.ID, "amount_cents", appt.CostCents)
	return payment, session.URL, nil
}

// Settle records a processor-confirmed payment and confirms its appointment.
// It is idempotent: settling an already-succeeded payment reports no change.
func (s *Service) Settle(ctx context.Context, paymentID uuid.UUID, providerRef, source string) (bool, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("serenbook.payment_id", paymentID.String()),
		attribute.String("serenbook.source", source),
	)

	payment, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if payment.Status == StatusSucceeded || payment.Status == StatusRefunded {
		return false, nil
	}

	if err := s.store.UpdateStatus(ctx, paymentID, StatusSucceeded, providerRef); err != nil {
		return false, err
	}

	appt, err := s.confirmer.Confirm(ctx, payment.AppointmentID)
	if err != nil {
		// The money moved; a cancelled appointment needs a refund, not a
		// rolled-back payment.
		s.logger.Warn("settled payment could not confirm appointment",
			"payment_id", paymentID, "appointment_id", payment.AppointmentID, "error", err)
	}

	event := events.PaymentSucceededV1{
		PaymentID:      paymentID.String(),
		AppointmentID:  payment.AppointmentID.String(),
		ProfessionalID: payment.ProfessionalID.String(),
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		Provider:       payment.Provider,
	}
	if _, err := s.outbox.Insert(ctx, payment.ProfessionalID.String(), events.TypePaymentSucceeded, event); err != nil {
		s.logger.Error("failed to enqueue payment event", "payment_id", paymentID, "error", err)
	}
	if appt != nil {
		confirmed := events.BookingConfirmedV1{
			AppointmentID:  appt.ID.String(),
			ProfessionalID: appt.ProfessionalID.String(),
			PatientID:      appt.PatientID.String(),
			Date:           appt.Date.Format("2006-01-02"),
			StartTime:      appt.StartTime,
		}
		if _, err := s.outbox.Insert(ctx, appt.ProfessionalID.String(), events.TypeBookingConfirmed, confirmed); err != nil {
			s.logger.Error("failed to enqueue booking event", "appointment_id", appt.ID, "error", err)
		}
	}

	s.logger.Info("payment settled",
		"payment_id", paymentID, "provider_ref", providerRef, "source", source)
	return true, nil
}
