// Package appointments holds the appointment record, its lifecycle rules, and
// its pgx persistence.
package appointments

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/availability"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo enforces the lifecycle: pending -> confirmed, and either may
// cancel; confirmed may complete or no-show.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled || next == StatusCompleted || next == StatusNoShow
	}
	return false
}

// Appointment is a pending or confirmed commitment between a patient and a
// professional.
type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID

	// Date is the calendar day (UTC midnight); StartTime is a "15:04" clock.
	Date            time.Time
	StartTime       string
	DurationMinutes int

	CostCents int64
	Status    Status

	// PaymentID links the deposit payment record; preserved across reschedules.
	PaymentID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartsAt combines Date and StartTime into an instant (UTC).
func (a Appointment) StartsAt() (time.Time, error) {
	minutes, err := availability.ParseClock(a.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("appointments: %w", err)
	}
	return a.Date.Add(time.Duration(minutes) * time.Minute), nil
}

// Interval adapts the appointment into the conflict engine's representation.
func (a Appointment) Interval() availability.Interval {
	start, err := availability.ParseClock(a.StartTime)
	if err != nil {
		// A malformed stored time still has to occupy its day rather than
		// silently freeing the slot.
		return availability.Interval{Kind: availability.BlockFullDay, StartDate: a.Date, StartMin: -1, EndMin: -1}
	}
	return availability.TimeRange(a.Date, start, start+a.DurationMinutes)
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}
