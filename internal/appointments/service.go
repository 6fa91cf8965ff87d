package appointments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/pkg/logging"
)

var apptTracer = otel.Tracer("serenbook.internal.appointments")

// Store is the repository surface the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// Service applies lifecycle transitions to appointments.
type Service struct {
	repo   Store
	logger *logging.Logger
}

// NewService constructs an appointments service.
func NewService(repo Store, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Transition moves an appointment to the next lifecycle state, enforcing the
// allowed transitions. Repeating the current state is a no-op, which keeps
// payment-settlement retries idempotent.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next Status) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("serenbook.appointment_id", id.String()),
		attribute.String("serenbook.next_status", string(next)),
	)

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if appt.Status == next {
		return appt, nil
	}
	if !appt.Status.CanTransitionTo(next) {
		err := fmt.Errorf("appointments: illegal transition %s -> %s", appt.Status, next)
		span.RecordError(err)
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("appointment transitioned",
		"appointment_id", id, "from", appt.Status, "to", next)
	appt.Status = next
	return appt, nil
}

// Confirm marks a pending appointment confirmed, typically on payment settlement.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, id, StatusConfirmed)
}

// Cancel releases the appointment's slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, id, StatusCancelled)
}
