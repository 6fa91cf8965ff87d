package handlers

import (
	"errors"
	"net/http"

	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/internal/payments"
	"github.com/serenbook/platform/pkg/logging"
)

// AdminReconcileHandler triggers a payment reconciliation sweep on demand.
type AdminReconcileHandler struct {
	reconciler *payments.Reconciler
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
}

// NewAdminReconcileHandler creates an admin reconcile handler.
func NewAdminReconcileHandler(reconciler *payments.Reconciler, m *metrics.BookingMetrics, logger *logging.Logger) *AdminReconcileHandler {
	if reconciler == nil {
		panic("handlers: payment reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReconcileHandler{reconciler: reconciler, metrics: m, logger: logger}
}

type reconcileResponse struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
	Flagged   int `json:"flagged"`
	Pending   int `json:"pending"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
}

// Run handles POST /admin/reconcile/payments.
func (h *AdminReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Run(r.Context())
	if err != nil {
		h.logger.Error("payment reconciliation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "reconciliation sweep failed")
		return
	}
	h.metrics.ObserveReconcile("corrected", result.Corrected)
	h.metrics.ObserveReconcile("flagged", result.Flagged)
	h.metrics.ObserveReconcile("failed", result.Failed)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Checked:   result.Checked,
		Corrected: result.Corrected,
		Flagged:   result.Flagged,
		Pending:   result.Pending,
		Expired:   result.Expired,
		Failed:    result.Failed,
	})
}

// Payment handles GET /admin/reconcile/payments/{paymentID}. It reconciles a
// single payment on demand, which is how an operator investigates one
// suspicious transaction without waiting for the sweep.
func (h *AdminReconcileHandler) Payment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentID")
	if !ok {
		return
	}
	result, err := h.reconciler.ReconcilePaymentByID(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "payment not found")
			return
		}
		h.logger.Error("payment reconciliation failed", "payment_id", paymentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "reconciliation failed")
		return
	}
	h.metrics.ObserveReconcile("corrected", result.Corrected)
	h.metrics.ObserveReconcile("flagged", result.Flagged)
	h.metrics.ObserveReconcile("failed", result.Failed)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Checked:   result.Checked,
		Corrected: result.Corrected,
		Flagged:   result.Flagged,
		Pending:   result.Pending,
		Expired:   result.Expired,
		Failed:    result.Failed,
	})
}
