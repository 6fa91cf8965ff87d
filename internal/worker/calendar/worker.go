// Package calendarworker runs periodic calendar reconciliation for every
// professional with a connected external calendar.
package calendarworker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/calendarsync"
	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/pkg/logging"
)

type accountLister interface {
	ListProfessionals(ctx context.Context) ([]uuid.UUID, error)
}

type syncRunner interface {
	Push(ctx context.Context, professionalID uuid.UUID) (*calendarsync.SyncResult, error)
	Pull(ctx context.Context, professionalID uuid.UUID) (*calendarsync.SyncResult, error)
}

// Syncer pulls then pushes each connected professional's calendar on a fixed
// cadence. Pull runs first so imported busy windows are in place before push
// evaluates stale links.
type Syncer struct {
	accounts   accountLister
	reconciler syncRunner
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	interval   time.Duration
}

// NewSyncer wires a calendar sync worker.
func NewSyncer(accounts accountLister, reconciler syncRunner, m *metrics.BookingMetrics, logger *logging.Logger) *Syncer {
	if accounts == nil || reconciler == nil {
		panic("calendarworker: account lister and reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Syncer{
		accounts:   accounts,
		reconciler: reconciler,
		metrics:    m,
		logger:     logger,
		interval:   15 * time.Minute,
	}
}

func (s *Syncer) WithInterval(d time.Duration) *Syncer {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Run blocks until ctx is canceled, syncing once immediately and then on
// every tick.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.syncAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncAll(ctx)
		}
	}
}

func (s *Syncer) syncAll(ctx context.Context) {
	professionals, err := s.accounts.ListProfessionals(ctx)
	if err != nil {
		s.logger.Error("calendar sync sweep failed to list accounts", "error", err)
		return
	}
	for _, id := range professionals {
		if ctx.Err() != nil {
			return
		}
		s.syncOne(ctx, id)
	}
}

func (s *Syncer) syncOne(ctx context.Context, professionalID uuid.UUID) {
	pull, err := s.reconciler.Pull(ctx, professionalID)
	if err != nil {
		s.recordFailure(professionalID, "pull", err)
		return
	}
	s.record("pull", pull)

	push, err := s.reconciler.Push(ctx, professionalID)
	if err != nil {
		s.recordFailure(professionalID, "push", err)
		return
	}
	s.record("push", push)

	if pull.Created+pull.Deleted+push.Created+push.Updated+push.Deleted > 0 {
		s.logger.Info("calendar sync applied changes",
			"professional_id", professionalID,
			"pulled_created", pull.Created, "pulled_deleted", pull.Deleted,
			"pushed_created", push.Created, "pushed_updated", push.Updated, "pushed_deleted", push.Deleted)
	}
}

func (s *Syncer) record(direction string, result *calendarsync.SyncResult) {
	s.metrics.ObserveSync(direction, "created", result.Created)
	s.metrics.ObserveSync(direction, "updated", result.Updated)
	s.metrics.ObserveSync(direction, "deleted", result.Deleted)
	s.metrics.ObserveSync(direction, "failed", result.Failed)
}

func (s *Syncer) recordFailure(professionalID uuid.UUID, direction string, err error) {
	s.metrics.ObserveSync(direction, "aborted", 1)
	if errors.Is(err, calendarsync.ErrAuthExpired) {
		s.logger.Warn("calendar sync skipped, reconnect required",
			"professional_id", professionalID, "direction", direction)
		return
	}
	s.logger.Error("calendar sync failed",
		"professional_id", professionalID, "direction", direction, "error", err)
}
