// Package events carries the canonical event payloads, the outbox used for
// reliable notification delivery, and the processed-event store that keeps
// webhook handling idempotent.
package events

// Event type names, versioned so payloads can evolve.
const (
	TypeBookingConfirmed   = "booking.confirmed.v1"
	TypeBookingRescheduled = "booking.rescheduled.v1"
	TypePaymentSucceeded   = "payment.succeeded.v1"
	TypePaymentDrift       = "payment.drift_corrected.v1"
)

// BookingConfirmedV1 is emitted when a payment settles and the appointment
// flips to confirmed.
type BookingConfirmedV1 struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	PatientID      string `json:"patient_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
}

// BookingRescheduledV1 is emitted after a successful reschedule commit. Both
// parties are notified from this one event.
type BookingRescheduledV1 struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	PatientID      string `json:"patient_id"`
	OldDate        string `json:"old_date"`
	OldStartTime   string `json:"old_start_time"`
	NewDate        string `json:"new_date"`
	NewStartTime   string `json:"new_start_time"`
}

// PaymentSucceededV1 is emitted when the processor reports a settled payment,
// whether via webhook or reconciliation.
type PaymentSucceededV1 struct {
	PaymentID      string `json:"payment_id"`
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Provider       string `json:"provider"`
}

// PaymentDriftCorrectedV1 records a reconciliation remediation, so drift fixes
// are visible rather than silent.
type PaymentDriftCorrectedV1 struct {
	PaymentID      string `json:"payment_id"`
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status"`
	Source         string `json:"source"`
}
