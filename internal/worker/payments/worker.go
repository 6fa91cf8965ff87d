// Package paymentsworker sweeps pending payments against the processor on a
// fixed cadence, catching webhooks that never arrived.
package paymentsworker

import (
	"context"
	"time"

	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/internal/payments"
	"github.com/serenbook/platform/pkg/logging"
)

type sweeper interface {
	Run(ctx context.Context) (*payments.ReconcileResult, error)
}

// Sweeper runs the payment reconciler periodically.
type Sweeper struct {
	reconciler sweeper
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	interval   time.Duration
}

// NewSweeper wires a payment reconciliation worker.
func NewSweeper(reconciler sweeper, m *metrics.BookingMetrics, logger *logging.Logger) *Sweeper {
	if reconciler == nil {
		panic("paymentsworker: reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		reconciler: reconciler,
		metrics:    m,
		logger:     logger,
		interval:   30 * time.Minute,
	}
}

func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	result, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error("payment reconcile sweep failed", "error", err)
		return
	}
	s.metrics.ObserveReconcile("corrected", result.Corrected)
	s.metrics.ObserveReconcile("flagged", result.Flagged)
	s.metrics.ObserveReconcile("failed", result.Failed)
	if result.Corrected > 0 || result.Flagged > 0 {
		s.logger.Info("payment reconcile sweep corrected drift",
			"checked", result.Checked, "corrected", result.Corrected, "flagged", result.Flagged)
	}
}
