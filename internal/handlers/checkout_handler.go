package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/kart-checkout/internal/middleware"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/service"
)

// IntentCreator builds checkout intents
type IntentCreator interface {
	CreateIntent(ctx context.Context, userID string, req models.CheckoutRequest) (models.CheckoutResponse, error)
}

// CheckoutHandler handles checkout session requests
type CheckoutHandler struct {
	checkout IntentCreator
	log      *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout IntentCreator, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		log:      log,
	}
}

// CreateSession handles POST /api/payments/create-checkout-session
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("failed to decode checkout request", "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid or empty products array", h.log)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	resp, err := h.checkout.CreateIntent(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart), errors.Is(err, service.ErrInvalidCartLine):
			WriteError(w, http.StatusBadRequest, "Invalid or empty products array", h.log)
		case errors.Is(err, service.ErrMissingUser):
			WriteError(w, http.StatusUnauthorized, "Unauthorized: user identity required", h.log)
		default:
			h.log.Error("failed to create checkout session", "user_id", userID, "error", err)
			WriteFailure(w, http.StatusInternalServerError, "Error processing checkout", err, h.log)
		}
		return
	}

	WriteJSON(w, http.StatusOK, resp, h.log)
}
