// Package outboxworker drains the event outbox into notifications.
package outboxworker

import (
	"context"
	"time"

	"github.com/serenbook/platform/pkg/logging"
)

type drainer interface {
	Drain(ctx context.Context) (int, error)
}

// Drainer runs the notification dispatcher in a loop. Short interval: outbox
// entries are written at commit time and recipients expect prompt email.
type Drainer struct {
	dispatcher drainer
	logger     *logging.Logger
	interval   time.Duration
}

// NewDrainer wires an outbox drain worker.
func NewDrainer(dispatcher drainer, logger *logging.Logger) *Drainer {
	if dispatcher == nil {
		panic("outboxworker: dispatcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Drainer{dispatcher: dispatcher, logger: logger, interval: 15 * time.Second}
}

func (d *Drainer) WithInterval(interval time.Duration) *Drainer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Run blocks until ctx is canceled.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Drainer) drain(ctx context.Context) {
	delivered, err := d.dispatcher.Drain(ctx)
	if err != nil {
		d.logger.Error("outbox drain failed", "error", err)
		return
	}
	if delivered > 0 {
		d.logger.Info("outbox drained", "delivered", delivered)
	}
}
