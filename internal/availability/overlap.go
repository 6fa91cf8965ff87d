package availability

import "time"

// Interval is the conflict engine's view of one time commitment, whether it
// came from a block or an appointment. It is a plain value; Overlaps is pure.
type Interval struct {
	Kind BlockType

	// StartDate is the first day the interval applies to (UTC midnight).
	StartDate time.Time
	// EndDate extends the interval through that day inclusive; zero means the
	// interval covers StartDate only.
	EndDate time.Time

	// StartMin/EndMin are minutes from midnight for ranged kinds, half-open
	// [StartMin, EndMin). Both are -1 for full-day kinds.
	StartMin int
	EndMin   int

	// DayOfWeek is 1=Monday..7=Sunday for recurring intervals; 0 means derive
	// it from StartDate.
	DayOfWeek int

	Recurring bool
}

// TimeRange builds a single-day ranged interval, the shape appointments take
// when they enter conflict checks.
func TimeRange(date time.Time, startMin, endMin int) Interval {
	return Interval{
		Kind:      BlockTimeRange,
		StartDate: dateOnly(date),
		StartMin:  startMin,
		EndMin:    endMin,
	}
}

// Overlaps reports whether two commitments occupy any of the same time.
// It is total and side-effect free, and is the single overlap decision reused
// by block validation, slot generation, and reschedule checks.
func Overlaps(a, b Interval) bool {
	if !datesIntersect(a, b) {
		return false
	}
	// A full-day commitment consumes the whole day; clock times only matter
	// when both sides carry them.
	if a.Kind.Ranged() && b.Kind.Ranged() {
		return a.StartMin < b.EndMin && a.EndMin > b.StartMin
	}
	return true
}

func datesIntersect(a, b Interval) bool {
	switch {
	case a.recurring() && b.recurring():
		return a.weekday() == b.weekday()
	case a.recurring():
		return rangeContainsWeekday(b, a.weekday())
	case b.recurring():
		return rangeContainsWeekday(a, b.weekday())
	default:
		return !a.StartDate.After(b.lastDate()) && !b.StartDate.After(a.lastDate())
	}
}

// rangeContainsWeekday reports whether any day in iv's date range falls on the
// given ISO weekday.
func rangeContainsWeekday(iv Interval, weekday int) bool {
	last := iv.lastDate()
	if last.Sub(iv.StartDate) >= 6*24*time.Hour {
		return true
	}
	for d := iv.StartDate; !d.After(last); d = d.AddDate(0, 0, 1) {
		if ISOWeekday(d) == weekday {
			return true
		}
	}
	return false
}

func (iv Interval) recurring() bool {
	return iv.Recurring || iv.Kind.Weekly()
}

func (iv Interval) weekday() int {
	if iv.DayOfWeek >= 1 && iv.DayOfWeek <= 7 {
		return iv.DayOfWeek
	}
	return ISOWeekday(iv.StartDate)
}

func (iv Interval) lastDate() time.Time {
	if iv.EndDate.IsZero() {
		return iv.StartDate
	}
	return iv.EndDate
}
