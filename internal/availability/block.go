// Package availability holds availability blocks, the overlap decision logic,
// and the cached block store used by slot generation and booking validation.
package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlockType classifies how a block occupies time.
type BlockType string

const (
	// BlockFullDay blocks one or more whole calendar days.
	BlockFullDay BlockType = "full_day"
	// BlockTimeRange blocks a clock range on one or more calendar days.
	BlockTimeRange BlockType = "time_range"
	// BlockWeeklyDay blocks a whole weekday every week.
	BlockWeeklyDay BlockType = "weekly_day"
	// BlockWeeklyRange blocks a clock range on one weekday every week.
	BlockWeeklyRange BlockType = "weekly_range"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockFullDay, BlockTimeRange, BlockWeeklyDay, BlockWeeklyRange:
		return true
	}
	return false
}

// Ranged reports whether the type carries a start/end clock time.
func (t BlockType) Ranged() bool {
	return t == BlockTimeRange || t == BlockWeeklyRange
}

// Weekly reports whether the type recurs on a weekday.
func (t BlockType) Weekly() bool {
	return t == BlockWeeklyDay || t == BlockWeeklyRange
}

// Block is time during which a professional is not bookable. Blocks are either
// created by the professional or imported from a connected external calendar.
type Block struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Title          string
	Type           BlockType

	// StartDate is the first calendar day the block applies to (UTC midnight).
	StartDate time.Time
	// EndDate, when set, extends the block through that day inclusive.
	EndDate *time.Time

	// StartTime/EndTime are "15:04" clock strings for ranged types.
	StartTime string
	EndTime   string

	// DayOfWeek is 1=Monday..7=Sunday for weekly types; 0 when unset.
	DayOfWeek int

	Recurring     bool
	ExternalEvent bool
	// ExternalEventID and ExternalSource identify the imported source event.
	ExternalEventID string
	ExternalSource  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval converts the block into the conflict engine's representation.
func (b Block) Interval() Interval {
	iv := Interval{
		Kind:      b.Type,
		StartDate: dateOnly(b.StartDate),
		Recurring: b.Recurring || b.Type.Weekly(),
		DayOfWeek: b.DayOfWeek,
	}
	if b.EndDate != nil {
		iv.EndDate = dateOnly(*b.EndDate)
	}
	if b.Type.Ranged() {
		iv.StartMin, _ = ParseClock(b.StartTime)
		iv.EndMin, _ = ParseClock(b.EndTime)
	} else {
		iv.StartMin = -1
		iv.EndMin = -1
	}
	return iv
}

// ParseClock parses a "15:04" clock string into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("availability: parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "15:04".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ISOWeekday returns the day of week as 1=Monday..7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
