package scheduling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
)

// Monday 2026-09-07.
var monday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

type stubBlocks struct {
	blocks []availability.Block
	loads  atomic.Int64
}

func (s *stubBlocks) Load(ctx context.Context, professionalID uuid.UUID, forceRefresh bool) ([]availability.Block, error) {
	s.loads.Add(1)
	return s.blocks, nil
}

type stubAppts struct {
	appts []appointments.Appointment
}

func (s *stubAppts) ListActiveOnDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]appointments.Appointment, error) {
	return s.appts, nil
}

func workdayHours() WorkingHours {
	return WorkingHours{Start: "09:00", End: "18:00"}
}

func collect(t *testing.T, gen *Generator, pro uuid.UUID, date time.Time, exclude uuid.UUID) []Slot {
	t.Helper()
	seq, err := gen.Slots(context.Background(), pro, date, exclude)
	if err != nil {
		t.Fatal(err)
	}
	var out []Slot
	for slot := range seq {
		out = append(out, slot)
	}
	return out
}

func TestSlotsEmptyDayFillsWorkingWindow(t *testing.T) {
	gen := NewGenerator(&stubBlocks{}, &stubAppts{}, workdayHours(), 30*time.Minute)

	slots := collect(t, gen, uuid.New(), monday, uuid.Nil)
	if len(slots) != 18 {
		t.Fatalf("expected (18:00-09:00)/30m = 18 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s should be available on an empty day", s.Clock)
		}
	}
	if slots[0].Clock != "09:00" || slots[0].Label != "9:00 AM - 9:30 AM" {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
	if slots[17].Clock != "17:30" {
		t.Fatalf("unexpected last slot %+v", slots[17])
	}
}

func TestSlotsWeeklyBlockOccupiesItsWindow(t *testing.T) {
	pro := uuid.New()
	blocks := &stubBlocks{blocks: []availability.Block{{
		ID:             uuid.New(),
		ProfessionalID: pro,
		Type:           availability.BlockWeeklyRange,
		StartDate:      monday,
		StartTime:      "09:00",
		EndTime:        "10:00",
		DayOfWeek:      1,
		Recurring:      true,
	}}}
	gen := NewGenerator(blocks, &stubAppts{}, workdayHours(), 30*time.Minute)

	// Any future Monday: 09:00 and 09:30 blocked, 10:00 onward free.
	futureMonday := monday.AddDate(0, 0, 21)
	byClock := map[string]bool{}
	for _, s := range collect(t, gen, pro, futureMonday, uuid.Nil) {
		byClock[s.Clock] = s.Available
	}
	if byClock["09:00"] || byClock["09:30"] {
		t.Fatal("slots inside the weekly block should be unavailable")
	}
	if !byClock["10:00"] || !byClock["10:30"] {
		t.Fatal("slots after the weekly block should be available")
	}

	// On a Tuesday the weekly Monday block is irrelevant.
	tuesday := futureMonday.AddDate(0, 0, 1)
	for _, s := range collect(t, gen, pro, tuesday, uuid.Nil) {
		if !s.Available {
			t.Fatalf("Tuesday slot %s should be free of a Monday block", s.Clock)
		}
	}
}

func TestSlotsAppointmentsConsumeSlots(t *testing.T) {
	pro := uuid.New()
	appt := appointments.Appointment{
		ID:              uuid.New(),
		ProfessionalID:  pro,
		Date:            monday,
		StartTime:       "11:00",
		DurationMinutes: 60,
		Status:          appointments.StatusConfirmed,
	}
	gen := NewGenerator(&stubBlocks{}, &stubAppts{appts: []appointments.Appointment{appt}}, workdayHours(), 30*time.Minute)

	byClock := map[string]bool{}
	for _, s := range collect(t, gen, pro, monday, uuid.Nil) {
		byClock[s.Clock] = s.Available
	}
	if byClock["11:00"] || byClock["11:30"] {
		t.Fatal("slots under a confirmed appointment should be unavailable")
	}
	if !byClock["10:30"] || !byClock["12:00"] {
		t.Fatal("slots around the appointment should be available")
	}
}

func TestSlotsExcludeAppointmentForReschedule(t *testing.T) {
	pro := uuid.New()
	appt := appointments.Appointment{
		ID:              uuid.New(),
		ProfessionalID:  pro,
		Date:            monday,
		StartTime:       "11:00",
		DurationMinutes: 30,
		Status:          appointments.StatusConfirmed,
	}
	gen := NewGenerator(&stubBlocks{}, &stubAppts{appts: []appointments.Appointment{appt}}, workdayHours(), 30*time.Minute)

	for _, s := range collect(t, gen, pro, monday, appt.ID) {
		if !s.Available {
			t.Fatalf("slot %s should be free when the appointment excludes itself", s.Clock)
		}
	}
}

func TestSlotsInactiveWeekdayEmpty(t *testing.T) {
	gen := NewGenerator(&stubBlocks{}, &stubAppts{}, workdayHours(), 30*time.Minute)

	sunday := monday.AddDate(0, 0, 6)
	if slots := collect(t, gen, uuid.New(), sunday, uuid.Nil); len(slots) != 0 {
		t.Fatalf("expected no slots on an inactive weekday, got %d", len(slots))
	}
}

func TestSlotsSequenceIsRestartable(t *testing.T) {
	blocks := &stubBlocks{}
	gen := NewGenerator(blocks, &stubAppts{}, workdayHours(), time.Hour)

	seq, err := gen.Slots(context.Background(), uuid.New(), monday, uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}

	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != second || first == 0 {
		t.Fatalf("sequence should be restartable, got %d then %d", first, second)
	}
	if blocks.loads.Load() != 1 {
		t.Fatalf("iteration must not re-read storage, got %d loads", blocks.loads.Load())
	}
}

func TestSlotAvailableChecksAlignmentAndWindow(t *testing.T) {
	gen := NewGenerator(&stubBlocks{}, &stubAppts{}, workdayHours(), 30*time.Minute)
	pro := uuid.New()

	ok, err := gen.SlotAvailable(context.Background(), pro, monday, "09:30", uuid.Nil)
	if err != nil || !ok {
		t.Fatalf("aligned in-window slot should be available, got %v %v", ok, err)
	}

	ok, err = gen.SlotAvailable(context.Background(), pro, monday, "09:15", uuid.Nil)
	if err != nil || ok {
		t.Fatalf("misaligned time should not be offerable, got %v %v", ok, err)
	}

	ok, err = gen.SlotAvailable(context.Background(), pro, monday, "20:00", uuid.Nil)
	if err != nil || ok {
		t.Fatalf("time outside working hours should not be offerable, got %v %v", ok, err)
	}
}
