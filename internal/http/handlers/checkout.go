package handlers

import (
	"errors"
	"net/http"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/payments"
	"github.com/serenbook/platform/pkg/logging"
)

// CheckoutHandler opens deposit checkout sessions for appointments.
type CheckoutHandler struct {
	appts    *appointments.Repository
	payments *payments.Service
	logger   *logging.Logger
}

// NewCheckoutHandler creates a checkout handler.
func NewCheckoutHandler(appts *appointments.Repository, paymentsService *payments.Service, logger *logging.Logger) *CheckoutHandler {
	if appts == nil || paymentsService == nil {
		panic("handlers: appointment repository and payments service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{appts: appts, payments: paymentsService, logger: logger}
}

type checkoutResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	AmountCents int64  `json:"amount_cents"`
}

// Start handles POST /appointments/{appointmentID}/checkout.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.appts.GetByID(r.Context(), appointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "appointment not found")
			return
		}
		h.logger.Error("appointment lookup failed", "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not load appointment")
		return
	}
	if appt.Status != appointments.StatusPending {
		writeError(w, http.StatusConflict, "not_pending", "appointment is not awaiting a deposit")
		return
	}

	payment, url, err := h.payments.StartCheckout(r.Context(), *appt)
	if err != nil {
		h.logger.Error("checkout start failed", "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusBadGateway, "provider_error", "could not open checkout session")
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		PaymentID:   payment.ID.String(),
		CheckoutURL: url,
		AmountCents: payment.AmountCents,
	})
}
