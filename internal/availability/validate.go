package availability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ValidationError reports field-level problems with a candidate block. It is
// produced before any conflict checks run and never touches storage.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "availability: invalid block: " + strings.Join(parts, "; ")
}

// ConflictError reports that a candidate block overlaps existing commitments.
// It carries the conflicting blocks so callers can explain the rejection.
type ConflictError struct {
	Blocks []Block
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("availability: block conflicts with %d existing block(s)", len(e.Blocks))
}

// ValidationResult is the outcome of Store.Validate.
type ValidationResult struct {
	Valid       bool
	Errors      map[string]string
	Overlapping []Block
}

// Err converts a failed result into the matching typed error, nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	if len(r.Errors) > 0 {
		return &ValidationError{Fields: r.Errors}
	}
	return &ConflictError{Blocks: r.Overlapping}
}

// validateFields runs the required-field and ordering checks. It returns an
// empty map when the block is well formed.
func validateFields(b Block) map[string]string {
	errs := make(map[string]string)

	if !b.Type.Valid() {
		errs["block_type"] = fmt.Sprintf("unknown block type %q", b.Type)
		return errs
	}
	if b.ProfessionalID == uuid.Nil {
		errs["professional_id"] = "required"
	}
	if b.StartDate.IsZero() {
		errs["start_date"] = "required"
	}
	if b.EndDate != nil && !b.StartDate.IsZero() && b.EndDate.Before(b.StartDate) {
		errs["end_date"] = "must not be before start_date"
	}

	if b.Type.Ranged() {
		start, startErr := ParseClock(b.StartTime)
		if startErr != nil {
			errs["start_time"] = "required in HH:MM format"
		}
		end, endErr := ParseClock(b.EndTime)
		if endErr != nil {
			errs["end_time"] = "required in HH:MM format"
		}
		if startErr == nil && endErr == nil && start >= end {
			errs["end_time"] = "must be after start_time"
		}
	}

	if b.Type.Weekly() && (b.DayOfWeek < 1 || b.DayOfWeek > 7) {
		errs["day_of_week"] = "must be between 1 (Monday) and 7 (Sunday)"
	}

	return errs
}

// conflictingBlocks returns the manual blocks the candidate overlaps.
// External-event blocks are exempt from rejection in both directions: the
// professional's own connected calendar may legitimately contain entries that
// overlap their manual blocks.
func conflictingBlocks(candidate Block, existing []Block, excludeID uuid.UUID) []Block {
	if candidate.ExternalEvent {
		return nil
	}
	ci := candidate.Interval()
	var out []Block
	for _, other := range existing {
		if other.ID == candidate.ID || (excludeID != uuid.Nil && other.ID == excludeID) {
			continue
		}
		if other.ExternalEvent {
			continue
		}
		if Overlaps(ci, other.Interval()) {
			out = append(out, other)
		}
	}
	return out
}
