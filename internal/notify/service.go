package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/events"
	"github.com/serenbook/platform/pkg/logging"
)

// Service renders booking events into emails for both parties.
type Service struct {
	email    EmailSender
	contacts ContactDirectory
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, contacts ContactDirectory, logger *logging.Logger) *Service {
	if email == nil || contacts == nil {
		panic("notify: email sender and contact directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, contacts: contacts, logger: logger}
}

// NotifyBookingConfirmed emails the patient and the professional after a
// deposit settles.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, evt events.BookingConfirmedV1) error {
	when := formatSchedule(evt.Date, evt.StartTime)

	patientBody := fmt.Sprintf(
		"Your appointment is confirmed for %s.\n\nWe look forward to seeing you.", when)
	if err := s.sendTo(ctx, evt.PatientID, "Your appointment is confirmed", patientBody); err != nil {
		return err
	}

	proBody := fmt.Sprintf("A booking for %s has been confirmed and paid.", when)
	return s.sendTo(ctx, evt.ProfessionalID, "Booking confirmed", proBody)
}

// NotifyBookingRescheduled emails both parties after a reschedule commits.
func (s *Service) NotifyBookingRescheduled(ctx context.Context, evt events.BookingRescheduledV1) error {
	oldWhen := formatSchedule(evt.OldDate, evt.OldStartTime)
	newWhen := formatSchedule(evt.NewDate, evt.NewStartTime)

	patientBody := fmt.Sprintf(
		"Your appointment has moved from %s to %s.\n\nNo further action is needed.", oldWhen, newWhen)
	if err := s.sendTo(ctx, evt.PatientID, "Your appointment was rescheduled", patientBody); err != nil {
		return err
	}

	proBody := fmt.Sprintf("A booking moved from %s to %s.", oldWhen, newWhen)
	return s.sendTo(ctx, evt.ProfessionalID, "Booking rescheduled", proBody)
}

func (s *Service) sendTo(ctx context.Context, rawID, subject, body string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("notify: bad recipient id %q: %w", rawID, err)
	}
	contact, err := s.contacts.GetContact(ctx, id)
	if err != nil {
		return err
	}
	return s.email.Send(ctx, EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		Body:    body,
	})
}

// formatSchedule renders "2026-09-08" + "10:00" as a readable line. Malformed
// inputs fall back to the raw values rather than failing the notification.
func formatSchedule(date, clock string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date + " " + clock
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return d.Format("Monday, January 2") + " " + clock
	}
	return d.Format("Monday, January 2") + " at " + t.Format("3:04 PM")
}
