// Package payments persists deposit payments, talks to Stripe, and keeps the
// internal payment state reconciled with what the processor reports.
package payments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// CanTransitionTo enforces the monotonic lifecycle: a pending payment settles
// or fails, and only a settled payment can be refunded.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusSucceeded || next == StatusFailed
	case StatusSucceeded:
		return next == StatusRefunded
	}
	return false
}

// Settled reports whether money has moved.
func (s Status) Settled() bool {
	return s == StatusSucceeded || s == StatusRefunded
}

// Payment is one deposit charge for one appointment.
type Payment struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	ProfessionalID uuid.UUID

	Provider string
	// SessionID is the provider checkout session; ProviderRef is the settled
	// charge reference (the payment intent for Stripe). ProviderRef stays
	// empty until the provider reports success.
	SessionID   string
	ProviderRef string

	AmountCents int64
	Currency    string
	Status      Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
