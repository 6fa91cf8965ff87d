package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/internal/scheduling"
	"github.com/serenbook/platform/pkg/logging"
)

// RescheduleHandler moves appointments to a new slot.
type RescheduleHandler struct {
	rescheduler *scheduling.Rescheduler
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
}

// NewRescheduleHandler creates a reschedule handler.
func NewRescheduleHandler(rescheduler *scheduling.Rescheduler, m *metrics.BookingMetrics, logger *logging.Logger) *RescheduleHandler {
	if rescheduler == nil {
		panic("handlers: rescheduler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RescheduleHandler{rescheduler: rescheduler, metrics: m, logger: logger}
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type rescheduleResponse struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	Status        string `json:"status"`
}

// Reschedule handles POST /appointments/{appointmentID}/reschedule.
func (h *RescheduleHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.metrics.ObserveReschedule(string(scheduling.ReasonValidation))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "invalid reschedule request", Code: string(scheduling.ReasonValidation),
			Fields: map[string]string{"date": "must be YYYY-MM-DD"},
		})
		return
	}

	appt, err := h.rescheduler.Reschedule(r.Context(), appointmentID, date, req.StartTime)
	if err != nil {
		h.writeRescheduleError(w, appointmentID, err)
		return
	}

	h.metrics.ObserveReschedule("success")
	writeJSON(w, http.StatusOK, rescheduleResponse{
		AppointmentID: appt.ID.String(),
		Date:          appt.Date.Format("2006-01-02"),
		StartTime:     appt.StartTime,
		Status:        string(appt.Status),
	})
}

func (h *RescheduleHandler) writeRescheduleError(w http.ResponseWriter, appointmentID uuid.UUID, err error) {
	if errors.Is(err, appointments.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "appointment not found")
		return
	}
	var refused *scheduling.RescheduleError
	if errors.As(err, &refused) {
		h.metrics.ObserveReschedule(string(refused.Reason))
		status := http.StatusConflict
		if refused.Reason == scheduling.ReasonValidation {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{
			"error": refused.Detail,
			"code":  string(refused.Reason),
			"stale": refused.Stale,
		})
		return
	}
	h.logger.Error("reschedule failed", "appointment_id", appointmentID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "could not reschedule appointment")
}
