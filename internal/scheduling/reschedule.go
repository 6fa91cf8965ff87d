package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/events"
	redisclient "github.com/serenbook/platform/internal/redis"
	"github.com/serenbook/platform/pkg/logging"
)

// Reason is the machine-readable cause of a refused reschedule.
type Reason string

const (
	ReasonPastCutoff      Reason = "past_cutoff"
	ReasonSlotUnavailable Reason = "slot_unavailable"
	ReasonSameTime        Reason = "same_time"
	ReasonValidation      Reason = "validation_error"
)

// RescheduleError is a refused reschedule with its specific blocking reason.
// Stale marks the race case: the slot was free at validation time but taken by
// the time the commit re-checked it.
type RescheduleError struct {
	Reason Reason
	Stale  bool
	Detail string
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("scheduling: reschedule refused (%s): %s", e.Reason, e.Detail)
}

// AppointmentStore is the repository surface the coordinator needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, date time.Time, startTime string) error
}

// OutboxWriter queues notification events alongside the commit.
type OutboxWriter interface {
	Insert(ctx context.Context, professionalID string, eventType string, payload any) (uuid.UUID, error)
}

// Rescheduler validates a reschedule request against the cutoff policy and
// current availability, then replaces the appointment's date and time in place.
type Rescheduler struct {
	appts  AppointmentStore
	gen    *Generator
	locker redisclient.Locker
	outbox OutboxWriter
	cutoff time.Duration
	logger *logging.Logger

	now func() time.Time
}

// NewRescheduler constructs the coordinator. cutoff is how close to the
// currently scheduled time a reschedule is still allowed (one hour per policy).
func NewRescheduler(appts AppointmentStore, gen *Generator, locker redisclient.Locker, outbox OutboxWriter, cutoff time.Duration, logger *logging.Logger) *Rescheduler {
	if appts == nil || gen == nil || locker == nil {
		panic("scheduling: appointment store, generator, and locker required")
	}
	if cutoff <= 0 {
		cutoff = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Rescheduler{
		appts:  appts,
		gen:    gen,
		locker: locker,
		outbox: outbox,
		cutoff: cutoff,
		logger: logger,
		now:    time.Now,
	}
}

// Reschedule moves the appointment to newDate/newClock. On success the
// appointment keeps its identity and payment linkage and both parties get a
// notification event. On failure nothing is mutated and the error carries the
// specific blocking reason.
func (r *Rescheduler) Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time, newClock string) (*appointments.Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.appointment_id", appointmentID.String()))

	newMin, err := availability.ParseClock(newClock)
	if err != nil {
		return nil, &RescheduleError{Reason: ReasonValidation, Detail: "new time must be HH:MM"}
	}
	if newDate.IsZero() {
		return nil, &RescheduleError{Reason: ReasonValidation, Detail: "new date required"}
	}
	newDate = time.Date(newDate.Year(), newDate.Month(), newDate.Day(), 0, 0, 0, 0, time.UTC)

	appt, err := r.appts.GetByID(ctx, appointmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !appt.Active() {
		return nil, &RescheduleError{Reason: ReasonValidation, Detail: fmt.Sprintf("appointment is %s", appt.Status)}
	}

	now := r.now()
	newStart := newDate.Add(time.Duration(newMin) * time.Minute)
	if !newStart.After(now) {
		return nil, &RescheduleError{Reason: ReasonValidation, Detail: "new time must be in the future"}
	}
	if appt.Date.Equal(newDate) && appt.StartTime == newClock {
		return nil, &RescheduleError{Reason: ReasonSameTime, Detail: "new time matches the current time"}
	}

	currentStart, err := appt.StartsAt()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	// The cutoff protects the professional's near-term commitments: past it,
	// the current booking stands.
	if now.After(currentStart.Add(-r.cutoff)) {
		return nil, &RescheduleError{
			Reason: ReasonPastCutoff,
			Detail: fmt.Sprintf("reschedule closes %s before the appointment", r.cutoff),
		}
	}

	available, err := r.gen.SlotAvailable(ctx, appt.ProfessionalID, newDate, newClock, appt.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !available {
		return nil, &RescheduleError{Reason: ReasonSlotUnavailable, Detail: "requested slot is not available"}
	}

	old := *appt
	err = r.locker.WithProfessionalLock(ctx, appt.ProfessionalID, func(ctx context.Context) error {
		// Re-validate under the lock: the slot may have been taken between the
		// read above and this commit.
		stillFree, err := r.gen.SlotAvailable(ctx, appt.ProfessionalID, newDate, newClock, appt.ID)
		if err != nil {
			return err
		}
		if !stillFree {
			return &RescheduleError{Reason: ReasonSlotUnavailable, Stale: true, Detail: "slot was taken during submission"}
		}
		return r.appts.UpdateSchedule(ctx, appt.ID, newDate, newClock)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, &RescheduleError{Reason: ReasonSlotUnavailable, Stale: true, Detail: "another change for this professional is in flight"}
		}
		span.RecordError(err)
		return nil, err
	}

	appt.Date = newDate
	appt.StartTime = newClock

	if r.outbox != nil {
		payload := events.BookingRescheduledV1{
			AppointmentID:  appt.ID.String(),
			ProfessionalID: appt.ProfessionalID.String(),
			PatientID:      appt.PatientID.String(),
			OldDate:        old.Date.Format("2006-01-02"),
			OldStartTime:   old.StartTime,
			NewDate:        appt.Date.Format("2006-01-02"),
			NewStartTime:   appt.StartTime,
		}
		if _, err := r.outbox.Insert(ctx, appt.ProfessionalID.String(), events.TypeBookingRescheduled, payload); err != nil {
			// The reschedule itself committed; notification delivery has its
			// own retry path.
			r.logger.Error("failed to queue reschedule notification", "error", err, "appointment_id", appt.ID)
		}
	}

	r.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"old", old.Date.Format("2006-01-02")+" "+old.StartTime,
		"new", appt.Date.Format("2006-01-02")+" "+appt.StartTime,
	)
	return appt, nil
}
