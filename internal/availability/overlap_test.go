package availability

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Monday 2026-09-07.
var monday = date(2026, time.September, 7)

func ranged(day time.Time, start, end int) Interval {
	return TimeRange(day, start, end)
}

func fullDay(start, end time.Time) Interval {
	iv := Interval{Kind: BlockFullDay, StartDate: start, StartMin: -1, EndMin: -1}
	if !end.IsZero() && !end.Equal(start) {
		iv.EndDate = end
	}
	return iv
}

func weeklyRange(dow, start, end int) Interval {
	return Interval{Kind: BlockWeeklyRange, StartDate: monday, DayOfWeek: dow, StartMin: start, EndMin: end, Recurring: true}
}

func TestOverlapsRangedPairs(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"same window", ranged(monday, 540, 600), ranged(monday, 540, 600), true},
		{"partial overlap", ranged(monday, 540, 600), ranged(monday, 570, 630), true},
		{"contained", ranged(monday, 540, 660), ranged(monday, 570, 600), true},
		{"adjacent half-open", ranged(monday, 540, 600), ranged(monday, 600, 660), false},
		{"different day", ranged(monday, 540, 600), ranged(monday.AddDate(0, 0, 1), 540, 600), false},
		{"disjoint times", ranged(monday, 540, 600), ranged(monday, 720, 780), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.a, tc.b); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.b, tc.a); got != tc.want {
				t.Errorf("Overlaps reversed = %v, want %v (symmetry)", got, tc.want)
			}
		})
	}
}

func TestOverlapsFullDayConsumesWholeDay(t *testing.T) {
	day := fullDay(monday, time.Time{})
	if !Overlaps(day, ranged(monday, 540, 600)) {
		t.Error("full-day block should conflict with any ranged commitment that day")
	}
	if Overlaps(day, ranged(monday.AddDate(0, 0, 1), 540, 600)) {
		t.Error("full-day block should not conflict with another day")
	}

	span := fullDay(monday, monday.AddDate(0, 0, 3))
	if !Overlaps(span, ranged(monday.AddDate(0, 0, 2), 540, 600)) {
		t.Error("multi-day block should cover interior days")
	}
	if Overlaps(span, ranged(monday.AddDate(0, 0, 4), 540, 600)) {
		t.Error("multi-day block should end on its end date")
	}
}

func TestOverlapsWeeklyRecurring(t *testing.T) {
	// Weekly Monday 09:00-10:00.
	block := weeklyRange(1, 540, 600)

	futureMonday := monday.AddDate(0, 0, 28)
	if !Overlaps(block, ranged(futureMonday, 540, 600)) {
		t.Error("weekly Monday block should conflict with any future Monday in its window")
	}
	if !Overlaps(block, ranged(futureMonday, 570, 630)) {
		t.Error("weekly block should conflict with a partially overlapping Monday range")
	}
	if Overlaps(block, ranged(futureMonday, 600, 660)) {
		t.Error("Monday 10:00-11:00 should stay free next to a 09:00-10:00 weekly block")
	}
	if Overlaps(block, ranged(futureMonday.AddDate(0, 0, 1), 540, 600)) {
		t.Error("weekly Monday block should not conflict with a Tuesday")
	}
}

func TestOverlapsRecurringVsRecurring(t *testing.T) {
	if !Overlaps(weeklyRange(3, 540, 600), weeklyRange(3, 570, 630)) {
		t.Error("same weekday, overlapping times should conflict")
	}
	if Overlaps(weeklyRange(3, 540, 600), weeklyRange(4, 540, 600)) {
		t.Error("different weekdays should not conflict")
	}

	// Whole-day weekly blocks ignore times entirely.
	a := Interval{Kind: BlockWeeklyDay, StartDate: monday, DayOfWeek: 5, StartMin: -1, EndMin: -1, Recurring: true}
	b := weeklyRange(5, 540, 600)
	if !Overlaps(a, b) {
		t.Error("weekly full-day block should conflict with same-weekday ranges")
	}
}

func TestOverlapsDerivesWeekdayFromStartDate(t *testing.T) {
	// No explicit day_of_week; the start date is a Monday.
	block := Interval{Kind: BlockWeeklyDay, StartDate: monday, StartMin: -1, EndMin: -1, Recurring: true}
	if !Overlaps(block, ranged(monday.AddDate(0, 0, 7), 540, 600)) {
		t.Error("weekday should be derived from start_date when day_of_week is absent")
	}
	if Overlaps(block, ranged(monday.AddDate(0, 0, 8), 540, 600)) {
		t.Error("derived weekday should still exclude other days")
	}
}

func TestOverlapsWeekLongRangeHitsEveryWeekday(t *testing.T) {
	span := Interval{Kind: BlockTimeRange, StartDate: monday, EndDate: monday.AddDate(0, 0, 6), StartMin: 0, EndMin: 1440}
	for dow := 1; dow <= 7; dow++ {
		if !Overlaps(span, Interval{Kind: BlockWeeklyDay, StartDate: monday, DayOfWeek: dow, StartMin: -1, EndMin: -1, Recurring: true}) {
			t.Errorf("seven-day range should intersect weekday %d", dow)
		}
	}
}
