package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/events"
	"github.com/serenbook/platform/pkg/logging"
)

// OutboxSource is the slice of the outbox the dispatcher drains.
type OutboxSource interface {
	FetchPending(ctx context.Context, limit int32) ([]events.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Dispatcher drains the outbox and routes events to notifications. A failed
// delivery stays pending and is retried on the next drain.
type Dispatcher struct {
	outbox  OutboxSource
	service *Service
	batch   int32
	logger  *logging.Logger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(outbox OutboxSource, service *Service, logger *logging.Logger) *Dispatcher {
	if outbox == nil || service == nil {
		panic("notify: outbox and service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{outbox: outbox, service: service, batch: 50, logger: logger}
}

// Drain processes one batch of pending events and returns how many delivered.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	entries, err := d.outbox.FetchPending(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range entries {
		if err := d.deliver(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed",
				"outbox_id", entry.ID, "type", entry.Type, "error", err)
			continue
		}
		if _, err := d.outbox.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark delivered", "outbox_id", entry.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeBookingConfirmed:
		var evt events.BookingConfirmedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return err
		}
		return d.service.NotifyBookingConfirmed(ctx, evt)
	case events.TypeBookingRescheduled:
		var evt events.BookingRescheduledV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return err
		}
		return d.service.NotifyBookingRescheduled(ctx, evt)
	default:
		// Audit-only events carry no outbound notification.
		d.logger.Debug("outbox event has no notification route", "type", entry.Type)
		return nil
	}
}
