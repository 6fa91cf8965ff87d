package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/serenbook/platform/internal/calendarsync"
	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/pkg/logging"
)

// CalendarHandler triggers calendar sync runs for a professional.
type CalendarHandler struct {
	reconciler *calendarsync.Reconciler
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
}

// NewCalendarHandler creates a calendar sync handler.
func NewCalendarHandler(reconciler *calendarsync.Reconciler, m *metrics.BookingMetrics, logger *logging.Logger) *CalendarHandler {
	if reconciler == nil {
		panic("handlers: calendar reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarHandler{reconciler: reconciler, metrics: m, logger: logger}
}

type syncResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Push handles POST /professionals/{professionalID}/calendar/push.
func (h *CalendarHandler) Push(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "push", h.reconciler.Push)
}

// Pull handles POST /professionals/{professionalID}/calendar/pull.
func (h *CalendarHandler) Pull(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "pull", h.reconciler.Pull)
}

func (h *CalendarHandler) run(w http.ResponseWriter, r *http.Request, direction string, sync func(ctx context.Context, professionalID uuid.UUID) (*calendarsync.SyncResult, error)) {
	professionalID, ok := pathUUID(w, r, "professionalID")
	if !ok {
		return
	}
	result, err := sync(r.Context(), professionalID)
	if err != nil {
		if errors.Is(err, calendarsync.ErrAuthExpired) {
			writeError(w, http.StatusConflict, "auth_expired", "calendar connection expired, reconnect required")
			return
		}
		h.logger.Error("calendar sync failed",
			"professional_id", professionalID, "direction", direction, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "calendar sync failed")
		return
	}
	h.metrics.ObserveSync(direction, "created", result.Created)
	h.metrics.ObserveSync(direction, "updated", result.Updated)
	h.metrics.ObserveSync(direction, "deleted", result.Deleted)
	h.metrics.ObserveSync(direction, "failed", result.Failed)
	writeJSON(w, http.StatusOK, syncResponse{
		Created: result.Created,
		Updated: result.Updated,
		Deleted: result.Deleted,
		Failed:  result.Failed,
	})
}
