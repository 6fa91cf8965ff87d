package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/pkg/logging"
)

var syncTracer = otel.Tracer("serenbook.internal.calendarsync")

// AppointmentSource is the slice of appointment storage the reconciler needs.
type AppointmentSource interface {
	ListActiveInWindow(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]appointments.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

// BlockStore is the slice of the availability store the reconciler needs.
type BlockStore interface {
	Load(ctx context.Context, professionalID uuid.UUID, forceRefresh bool) ([]availability.Block, error)
	ListExternal(ctx context.Context, professionalID uuid.UUID, source string) ([]availability.Block, error)
	Create(ctx context.Context, b availability.Block) (*availability.Block, error)
	Delete(ctx context.Context, professionalID, id uuid.UUID) error
}

// LinkStore persists the internal-to-external event mapping.
type LinkStore interface {
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, provider string) ([]Link, error)
	Insert(ctx context.Context, link Link) (*Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SyncFailure records one resource that could not be reconciled this run.
type SyncFailure struct {
	ResourceType ResourceType
	ResourceID   uuid.UUID
	EventID      string
	Err          string
}

// SyncResult summarizes one push or pull run. Failures are per resource; a
// failed resource never stops the rest of the run.
type SyncResult struct {
	Created  int
	Updated  int
	Deleted  int
	Failed   int
	Failures []SyncFailure
}

func (r *SyncResult) fail(f SyncFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}

// Reconciler drives bidirectional sync between internal commitments and one
// external calendar provider. Every run is idempotent: the link table decides
// whether an event is created, updated, or left alone.
type Reconciler struct {
	appts    AppointmentSource
	blocks   BlockStore
	links    LinkStore
	provider ProviderClient
	window   time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewReconciler wires a reconciler. window bounds how far ahead push and pull
// look; zero falls back to 30 days.
func NewReconciler(appts AppointmentSource, blocks BlockStore, links LinkStore, provider ProviderClient, window time.Duration, logger *logging.Logger) *Reconciler {
	if appts == nil || blocks == nil || links == nil || provider == nil {
		panic("calendarsync: appointment source, block store, link store, and provider required")
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		appts:    appts,
		blocks:   blocks,
		links:    links,
		provider: provider,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

type resourceKey struct {
	typ ResourceType
	id  uuid.UUID
}

type pushItem struct {
	key   resourceKey
	event Event
}

// Push mirrors upcoming appointments and manual blocks out to the provider.
// Linked resources are updated in place, unlinked ones are created and linked,
// and events whose internal resource is gone are removed. An expired
// authorization aborts the whole run with ErrAuthExpired and no link changes.
func (r *Reconciler) Push(ctx context.Context, professionalID uuid.UUID) (*SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "calendarsync.push")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.professional_id", professionalID.String()))

	now := r.now().UTC()
	// Appointment and block dates are stored as plain dates, so the window
	// must open at today's midnight or today's rows fall below the lower
	// bound once the clock passes it.
	from := dateOnly(now)
	to := now.Add(r.window)

	items, err := r.pushItems(ctx, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	links, err := r.links.ListByProfessional(ctx, professionalID, ProviderName)
	if err != nil {
		return nil, err
	}
	linkByResource := make(map[resourceKey]Link, len(links))
	for _, link := range links {
		linkByResource[resourceKey{link.ResourceType, link.ResourceID}] = link
	}

	result := &SyncResult{}
	desired := make(map[resourceKey]bool, len(items))
	for _, item := range items {
		desired[item.key] = true
		if link, ok := linkByResource[item.key]; ok {
			if err := r.provider.UpdateEvent(ctx, professionalID, link.EventID, item.event); err != nil {
				if errors.Is(err, ErrAuthExpired) {
					return nil, err
				}
				result.fail(SyncFailure{item.key.typ, item.key.id, link.EventID, err.Error()})
				continue
			}
			result.Updated++
			continue
		}
		eventID, err := r.provider.CreateEvent(ctx, professionalID, item.event)
		if err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return nil, err
			}
			result.fail(SyncFailure{item.key.typ, item.key.id, "", err.Error()})
			continue
		}
		if _, err := r.links.Insert(ctx, Link{
			ProfessionalID: professionalID,
			ResourceType:   item.key.typ,
			ResourceID:     item.key.id,
			Provider:       ProviderName,
			EventID:        eventID,
		}); err != nil {
			// The event exists remotely but the link did not land; the next
			// run will create a duplicate unless the event is removed now.
			if delErr := r.provider.DeleteEvent(ctx, professionalID, eventID); delErr != nil {
				r.logger.Error("calendar sync: orphaned remote event",
					"professional_id", professionalID, "event_id", eventID, "error", delErr)
			}
			result.fail(SyncFailure{item.key.typ, item.key.id, eventID, err.Error()})
			continue
		}
		result.Created++
	}

	for _, link := range links {
		key := resourceKey{link.ResourceType, link.ResourceID}
		if desired[key] {
			continue
		}
		stale, err := r.linkIsStale(ctx, link)
		if err != nil {
			result.fail(SyncFailure{link.ResourceType, link.ResourceID, link.EventID, err.Error()})
			continue
		}
		if !stale {
			continue
		}
		if err := r.provider.DeleteEvent(ctx, professionalID, link.EventID); err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return nil, err
			}
			result.fail(SyncFailure{link.ResourceType, link.ResourceID, link.EventID, err.Error()})
			continue
		}
		if err := r.links.Delete(ctx, link.ID); err != nil && !errors.Is(err, ErrLinkNotFound) {
			result.fail(SyncFailure{link.ResourceType, link.ResourceID, link.EventID, err.Error()})
			continue
		}
		result.Deleted++
	}

	r.logger.Info("calendar sync push complete", "professional_id", professionalID,
		"created", result.Created, "updated", result.Updated,
		"deleted", result.Deleted, "failed", result.Failed)
	return result, nil
}

// Pull imports the professional's external busy events as blocks. Events the
// link table already knows about are skipped, so pushed appointments and
// blocks never come back as imports. Imported blocks whose source event has
// disappeared are removed. Appointments are never touched.
func (r *Reconciler) Pull(ctx context.Context, professionalID uuid.UUID) (*SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "calendarsync.pull")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.professional_id", professionalID.String()))

	from := r.now().UTC()
	to := from.Add(r.window)

	events, err := r.provider.ListEvents(ctx, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	links, err := r.links.ListByProfessional(ctx, professionalID, ProviderName)
	if err != nil {
		return nil, err
	}
	linkByEvent := make(map[string]Link, len(links))
	for _, link := range links {
		linkByEvent[link.EventID] = link
	}
	imported, err := r.blocks.ListExternal(ctx, professionalID, ProviderName)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		seen[ev.ID] = true
		if _, linked := linkByEvent[ev.ID]; linked {
			continue
		}
		block, err := r.blocks.Create(ctx, importedBlock(professionalID, ev))
		if err != nil {
			result.fail(SyncFailure{ResourceBlock, uuid.Nil, ev.ID, err.Error()})
			continue
		}
		if _, err := r.links.Insert(ctx, Link{
			ProfessionalID: professionalID,
			ResourceType:   ResourceBlock,
			ResourceID:     block.ID,
			Provider:       ProviderName,
			EventID:        ev.ID,
		}); err != nil {
			result.fail(SyncFailure{ResourceBlock, block.ID, ev.ID, err.Error()})
			continue
		}
		result.Created++
	}

	for _, block := range imported {
		if seen[block.ExternalEventID] {
			continue
		}
		// Only the listed window is authoritative; imported blocks outside it
		// are simply not visible in this run.
		if !withinWindow(block.StartDate, from, to) {
			continue
		}
		if err := r.blocks.Delete(ctx, professionalID, block.ID); err != nil {
			result.fail(SyncFailure{ResourceBlock, block.ID, block.ExternalEventID, err.Error()})
			continue
		}
		if link, ok := linkByEvent[block.ExternalEventID]; ok {
			if err := r.links.Delete(ctx, link.ID); err != nil && !errors.Is(err, ErrLinkNotFound) {
				result.fail(SyncFailure{ResourceBlock, block.ID, block.ExternalEventID, err.Error()})
				continue
			}
		}
		result.Deleted++
	}

	r.logger.Info("calendar sync pull complete", "professional_id", professionalID,
		"created", result.Created, "deleted", result.Deleted, "failed", result.Failed)
	return result, nil
}

func (r *Reconciler) pushItems(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]pushItem, error) {
	appts, err := r.appts.ListActiveInWindow(ctx, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	blocks, err := r.blocks.Load(ctx, professionalID, true)
	if err != nil {
		return nil, err
	}

	items := make([]pushItem, 0, len(appts)+len(blocks))
	for _, a := range appts {
		ev, err := appointmentEvent(a)
		if err != nil {
			return nil, err
		}
		items = append(items, pushItem{resourceKey{ResourceAppointment, a.ID}, ev})
	}
	for _, b := range blocks {
		if !pushable(b) {
			continue
		}
		items = append(items, pushItem{resourceKey{ResourceBlock, b.ID}, blockEvent(b)})
	}
	return items, nil
}

// linkIsStale reports whether the internal side of a link is gone or no longer
// occupies a slot. Resources outside the sync window stay linked untouched.
func (r *Reconciler) linkIsStale(ctx context.Context, link Link) (bool, error) {
	switch link.ResourceType {
	case ResourceAppointment:
		appt, err := r.appts.GetByID(ctx, link.ResourceID)
		if errors.Is(err, appointments.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return !appt.Active(), nil
	case ResourceBlock:
		blocks, err := r.blocks.Load(ctx, link.ProfessionalID, false)
		if err != nil {
			return false, err
		}
		for _, b := range blocks {
			if b.ID == link.ResourceID {
				// Imported blocks are pull's responsibility; their provider
				// events belong to the professional, not to us.
				if b.ExternalEvent {
					return false, nil
				}
				return !pushable(b), nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("calendarsync: unknown resource type %q", link.ResourceType)
}

// pushable excludes imported blocks, which would bounce back to their own
// source, and weekly blocks, which have no single-event representation.
func pushable(b availability.Block) bool {
	return !b.ExternalEvent && !b.Type.Weekly() && !b.Recurring
}

func appointmentEvent(a appointments.Appointment) (Event, error) {
	start, err := a.StartsAt()
	if err != nil {
		return Event{}, err
	}
	return Event{
		Summary: "Serenbook appointment",
		Start:   start,
		End:     start.Add(time.Duration(a.DurationMinutes) * time.Minute),
	}, nil
}

func blockEvent(b availability.Block) Event {
	ev := Event{Summary: b.Title}
	if ev.Summary == "" {
		ev.Summary = "Unavailable"
	}
	if b.Type.Ranged() {
		startMin, _ := availability.ParseClock(b.StartTime)
		endMin, _ := availability.ParseClock(b.EndTime)
		ev.Start = b.StartDate.Add(time.Duration(startMin) * time.Minute)
		ev.End = b.StartDate.Add(time.Duration(endMin) * time.Minute)
		return ev
	}
	ev.AllDay = true
	ev.Start = b.StartDate
	last := b.StartDate
	if b.EndDate != nil {
		last = *b.EndDate
	}
	// All-day events use an exclusive end date.
	ev.End = last.AddDate(0, 0, 1)
	return ev
}

// importedBlock shapes an external event as an availability block. Timed
// events become a same-day time range; all-day events and timed events that
// cross into later days become full-day blocks over their span.
func importedBlock(professionalID uuid.UUID, ev Event) availability.Block {
	title := ev.Summary
	if title == "" {
		title = "Busy"
	}
	b := availability.Block{
		ProfessionalID:  professionalID,
		Title:           title,
		ExternalEvent:   true,
		ExternalEventID: ev.ID,
		ExternalSource:  ProviderName,
	}
	if ev.AllDay {
		b.Type = availability.BlockFullDay
		b.StartDate = dateOnly(ev.Start)
		if last := dateOnly(ev.End).AddDate(0, 0, -1); last.After(b.StartDate) {
			b.EndDate = &last
		}
		return b
	}
	start := ev.Start.UTC()
	end := ev.End.UTC()
	b.StartDate = dateOnly(start)

	last := dateOnly(end)
	if end.Equal(last) {
		// A midnight end belongs to the previous day.
		last = last.AddDate(0, 0, -1)
	}
	if last.After(b.StartDate) {
		// A timed event that crosses into later days occupies them whole; a
		// per-day clock range cannot express that, so block the full span.
		b.Type = availability.BlockFullDay
		b.EndDate = &last
		return b
	}
	b.Type = availability.BlockTimeRange
	b.StartTime = availability.FormatClock(start.Hour()*60 + start.Minute())
	if !dateOnly(end).Equal(b.StartDate) {
		b.EndTime = "23:59"
	} else {
		b.EndTime = availability.FormatClock(end.Hour()*60 + end.Minute())
	}
	return b
}

func withinWindow(date, from, to time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(from)) && !d.After(dateOnly(to))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
