package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenbook/platform/internal/events"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
	fail bool
}

func (s *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubDirectory struct {
	contacts map[uuid.UUID]*Contact
}

func (d *stubDirectory) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	c, ok := d.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	return c, nil
}

type notifyFixture struct {
	service   *Service
	sender    *recordingSender
	directory *stubDirectory
	patient   uuid.UUID
	pro       uuid.UUID
}

func newNotifyFixture(t *testing.T) *notifyFixture {
	t.Helper()
	f := &notifyFixture{
		sender:    &recordingSender{},
		directory: &stubDirectory{contacts: make(map[uuid.UUID]*Contact)},
		patient:   uuid.New(),
		pro:       uuid.New(),
	}
	f.directory.contacts[f.patient] = &Contact{ID: f.patient, Name: "Mina Okafor", Email: "mina@example.com"}
	f.directory.contacts[f.pro] = &Contact{ID: f.pro, Name: "Dr. Reyes", Email: "reyes@example.com"}
	f.service = NewService(f.sender, f.directory, nil)
	return f
}

func TestNotifyBookingConfirmedEmailsBothParties(t *testing.T) {
	f := newNotifyFixture(t)

	err := f.service.NotifyBookingConfirmed(context.Background(), events.BookingConfirmedV1{
		AppointmentID:  uuid.NewString(),
		ProfessionalID: f.pro.String(),
		PatientID:      f.patient.String(),
		Date:           "2026-09-08",
		StartTime:      "10:00",
	})
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)

	assert.Equal(t, "mina@example.com", f.sender.sent[0].To)
	assert.Contains(t, f.sender.sent[0].Body, "Tuesday, September 8 at 10:00 AM")
	assert.Equal(t, "reyes@example.com", f.sender.sent[1].To)
}

func TestNotifyBookingRescheduledIncludesBothTimes(t *testing.T) {
	f := newNotifyFixture(t)

	err := f.service.NotifyBookingRescheduled(context.Background(), events.BookingRescheduledV1{
		AppointmentID:  uuid.NewString(),
		ProfessionalID: f.pro.String(),
		PatientID:      f.patient.String(),
		OldDate:        "2026-09-08",
		OldStartTime:   "10:00",
		NewDate:        "2026-09-09",
		NewStartTime:   "14:30",
	})
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[0].Body, "Tuesday, September 8 at 10:00 AM")
	assert.Contains(t, f.sender.sent[0].Body, "Wednesday, September 9 at 2:30 PM")
}

func TestNotifyUnknownContactFails(t *testing.T) {
	f := newNotifyFixture(t)

	err := f.service.NotifyBookingConfirmed(context.Background(), events.BookingConfirmedV1{
		ProfessionalID: f.pro.String(),
		PatientID:      uuid.NewString(),
		Date:           "2026-09-08",
		StartTime:      "10:00",
	})
	assert.ErrorIs(t, err, ErrContactNotFound)
	assert.Empty(t, f.sender.sent)
}

type stubOutboxSource struct {
	mu        sync.Mutex
	entries   []events.OutboxEntry
	delivered map[uuid.UUID]bool
}

func (s *stubOutboxSource) FetchPending(ctx context.Context, limit int32) ([]events.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.OutboxEntry
	for _, e := range s.entries {
		if !s.delivered[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubOutboxSource) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered == nil {
		s.delivered = make(map[uuid.UUID]bool)
	}
	s.delivered[id] = true
	return true, nil
}

func (s *stubOutboxSource) add(t *testing.T, eventType string, payload any) uuid.UUID {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	id := uuid.New()
	s.mu.Lock()
	s.entries = append(s.entries, events.OutboxEntry{
		ID: id, Type: eventType, Payload: data, CreatedAt: time.Now(),
	})
	s.mu.Unlock()
	return id
}

func TestDispatcherDrainsAndMarksDelivered(t *testing.T) {
	f := newNotifyFixture(t)
	outbox := &stubOutboxSource{}
	dispatcher := NewDispatcher(outbox, f.service, nil)

	id := outbox.add(t, events.TypeBookingConfirmed, events.BookingConfirmedV1{
		ProfessionalID: f.pro.String(),
		PatientID:      f.patient.String(),
		Date:           "2026-09-08",
		StartTime:      "10:00",
	})

	delivered, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.True(t, outbox.delivered[id])
	assert.Len(t, f.sender.sent, 2)
}

func TestDispatcherFailedDeliveryStaysPending(t *testing.T) {
	f := newNotifyFixture(t)
	f.sender.fail = true
	outbox := &stubOutboxSource{}
	dispatcher := NewDispatcher(outbox, f.service, nil)

	id := outbox.add(t, events.TypeBookingConfirmed, events.BookingConfirmedV1{
		ProfessionalID: f.pro.String(),
		PatientID:      f.patient.String(),
		Date:           "2026-09-08",
		StartTime:      "10:00",
	})

	delivered, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.False(t, outbox.delivered[id])

	f.sender.fail = false
	delivered, err = dispatcher.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestDispatcherMarksAuditOnlyEventsDelivered(t *testing.T) {
	f := newNotifyFixture(t)
	outbox := &stubOutboxSource{}
	dispatcher := NewDispatcher(outbox, f.service, nil)

	outbox.add(t, events.TypePaymentDrift, events.PaymentDriftCorrectedV1{
		PaymentID: uuid.NewString(),
	})

	delivered, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Empty(t, f.sender.sent)
}
