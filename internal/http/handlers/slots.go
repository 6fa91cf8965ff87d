package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/internal/scheduling"
	"github.com/serenbook/platform/pkg/logging"
)

// SlotsHandler serves the bookable slot list for a professional's day.
type SlotsHandler struct {
	generator *scheduling.Generator
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewSlotsHandler creates a slots handler.
func NewSlotsHandler(generator *scheduling.Generator, m *metrics.BookingMetrics, logger *logging.Logger) *SlotsHandler {
	if generator == nil {
		panic("handlers: slot generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{generator: generator, metrics: m, logger: logger}
}

type slotResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Clock     string `json:"clock"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// List returns the slots for ?date=YYYY-MM-DD. Only available slots are
// included unless ?all=true.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	rawDate := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_date", "date must be YYYY-MM-DD")
		return
	}
	includeAll := r.URL.Query().Get("all") == "true"

	// exclude_appointment frees the slot held by an appointment that is being
	// moved, so its current time shows up as bookable.
	exclude := uuid.Nil
	if raw := r.URL.Query().Get("exclude_appointment"); raw != "" {
		exclude, err = uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_id", "exclude_appointment must be a UUID")
			return
		}
	}

	start := time.Now()
	seq, err := h.generator.Slots(r.Context(), professionalID, date, exclude)
	if err != nil {
		h.logger.Error("slot generation failed",
			"professional_id", professionalID, "date", rawDate, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not generate slots")
		return
	}

	out := make([]slotResponse, 0, 32)
	for slot := range seq {
		if !slot.Available && !includeAll {
			continue
		}
		out = append(out, slotResponse{
			Start:     slot.Start.Format(time.RFC3339),
			End:       slot.End.Format(time.RFC3339),
			Clock:     slot.Clock,
			Label:     slot.Label,
			Available: slot.Available,
		})
	}
	h.metrics.ObserveSlotLatency("any", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  rawDate,
		"slots": out,
	})
}
