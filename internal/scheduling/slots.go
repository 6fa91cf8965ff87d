// Package scheduling derives bookable slots and governs rescheduling.
package scheduling

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
)

var schedulingTracer = otel.Tracer("serenbook.internal.scheduling")

// WorkingHours is a professional's bookable window.
type WorkingHours struct {
	// Start and End are "15:04" clock strings.
	Start string
	End   string
	// Weekdays holds the active ISO weekdays (1=Monday..7=Sunday). Empty means
	// Monday through Friday.
	Weekdays map[int]bool
}

// DefaultWeekdays is Monday through Friday.
func DefaultWeekdays() map[int]bool {
	return map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
}

func (w WorkingHours) activeOn(date time.Time) bool {
	days := w.Weekdays
	if len(days) == 0 {
		days = DefaultWeekdays()
	}
	return days[availability.ISOWeekday(date)]
}

// Slot is one offerable time unit on a given date.
type Slot struct {
	Start     time.Time
	End       time.Time
	Clock     string // "09:30"
	Label     string // "9:30 AM - 10:00 AM"
	Available bool
}

// BlockSource loads a professional's availability blocks.
type BlockSource interface {
	Load(ctx context.Context, professionalID uuid.UUID, forceRefresh bool) ([]availability.Block, error)
}

// AppointmentSource lists the appointments that occupy a day.
type AppointmentSource interface {
	ListActiveOnDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]appointments.Appointment, error)
}

// Generator combines working hours, blocks, and existing appointments into the
// offerable slot set for a date.
type Generator struct {
	blocks      BlockSource
	appts       AppointmentSource
	hours       WorkingHours
	granularity time.Duration
}

// NewGenerator creates a slot generator with the given defaults.
func NewGenerator(blocks BlockSource, appts AppointmentSource, hours WorkingHours, granularity time.Duration) *Generator {
	if blocks == nil || appts == nil {
		panic("scheduling: block and appointment sources required")
	}
	if granularity <= 0 {
		granularity = 30 * time.Minute
	}
	return &Generator{blocks: blocks, appts: appts, hours: hours, granularity: granularity}
}

// Slots returns the day's slot sequence. The sequence is finite, restartable,
// and side-effect free: all reads happen here, before the first yield.
// excludeAppointment removes one appointment from the conflict set, so a
// reschedule does not collide with itself.
func (g *Generator) Slots(ctx context.Context, professionalID uuid.UUID, date time.Time, excludeAppointment uuid.UUID) (iter.Seq[Slot], error) {
	return g.slots(ctx, professionalID, date, excludeAppointment, false)
}

func (g *Generator) slots(ctx context.Context, professionalID uuid.UUID, date time.Time, excludeAppointment uuid.UUID, forceRefresh bool) (iter.Seq[Slot], error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("serenbook.professional_id", professionalID.String()),
		attribute.String("serenbook.date", date.Format("2006-01-02")),
	)

	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	startMin, err := availability.ParseClock(g.hours.Start)
	if err != nil {
		return nil, fmt.Errorf("scheduling: working day start: %w", err)
	}
	endMin, err := availability.ParseClock(g.hours.End)
	if err != nil {
		return nil, fmt.Errorf("scheduling: working day end: %w", err)
	}

	if !g.hours.activeOn(date) {
		return func(yield func(Slot) bool) {}, nil
	}

	blocks, err := g.blocks.Load(ctx, professionalID, forceRefresh)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	appts, err := g.appts.ListActiveOnDate(ctx, professionalID, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Every commitment that can consume a slot: manual blocks, imported
	// external events, and non-cancelled appointments.
	busy := make([]availability.Interval, 0, len(blocks)+len(appts))
	for _, b := range blocks {
		busy = append(busy, b.Interval())
	}
	for _, a := range appts {
		if a.ID == excludeAppointment {
			continue
		}
		busy = append(busy, a.Interval())
	}

	step := int(g.granularity / time.Minute)
	return func(yield func(Slot) bool) {
		for min := startMin; min+step <= endMin; min += step {
			candidate := availability.TimeRange(date, min, min+step)
			slot := Slot{
				Start:     date.Add(time.Duration(min) * time.Minute),
				End:       date.Add(time.Duration(min+step) * time.Minute),
				Clock:     availability.FormatClock(min),
				Label:     slotLabel(min, min+step),
				Available: true,
			}
			for _, iv := range busy {
				if availability.Overlaps(candidate, iv) {
					slot.Available = false
					break
				}
			}
			if !yield(slot) {
				return
			}
		}
	}, nil
}

// SlotAvailable re-checks one candidate window at submission time. It refreshes
// the block cache so the answer reflects current state, not an earlier read.
func (g *Generator) SlotAvailable(ctx context.Context, professionalID uuid.UUID, date time.Time, clock string, excludeAppointment uuid.UUID) (bool, error) {
	slots, err := g.slots(ctx, professionalID, date, excludeAppointment, true)
	if err != nil {
		return false, err
	}
	for slot := range slots {
		if slot.Clock == clock {
			return slot.Available, nil
		}
	}
	// Not a generated slot at all (outside working hours or misaligned).
	return false, nil
}

func slotLabel(startMin, endMin int) string {
	return fmt.Sprintf("%s - %s", clock12(startMin), clock12(endMin))
}

func clock12(min int) string {
	h, m := min/60, min%60
	suffix := "AM"
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		h -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}
