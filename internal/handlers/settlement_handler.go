package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/service"
)

const settledMessage = "Payment successful, order created, and coupon deactivated if used."

// PaymentSettler records verified payments
type PaymentSettler interface {
	Settle(ctx context.Context, req models.SettlementRequest) (service.SettlementResult, error)
}

// SettlementHandler handles the payment success callback
type SettlementHandler struct {
	settlement PaymentSettler
	log        *slog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(settlement PaymentSettler, log *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlement: settlement,
		log:        log,
	}
}

// CheckoutSuccess handles POST /api/payments/checkout-success
func (h *SettlementHandler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	var req models.SettlementRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("failed to decode settlement request", "error", err)
		WriteJSON(w, http.StatusBadRequest, models.SettlementResponse{Message: "Invalid request body"}, h.log)
		return
	}

	result, err := h.settlement.Settle(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureMismatch):
			WriteJSON(w, http.StatusBadRequest, models.SettlementResponse{
				Message: "Payment verification failed (Signature Mismatch)",
			}, h.log)
		case errors.Is(err, service.ErrAmountMismatch):
			WriteJSON(w, http.StatusBadRequest, models.SettlementResponse{
				Message: "Payment verification failed (Amount Mismatch)",
			}, h.log)
		case errors.Is(err, service.ErrInvalidSettlement):
			WriteJSON(w, http.StatusBadRequest, models.SettlementResponse{
				Message: "Invalid settlement request",
			}, h.log)
		default:
			h.log.Error("failed to settle payment", "payment_id", req.RazorpayPaymentID, "error", err)
			WriteFailure(w, http.StatusInternalServerError, "Error processing successful checkout", err, h.log)
		}
		return
	}

	WriteJSON(w, http.StatusOK, models.SettlementResponse{
		Success: true,
		Message: settledMessage,
		OrderID: result.Order.ID.String(),
	}, h.log)
}
