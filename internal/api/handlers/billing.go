package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graemedakers/decision-jar/internal/api/dto"
	"github.com/graemedakers/decision-jar/internal/billing"
)

type BillingHandler struct {
	billingService *billing.Service
	webhookSecret  string
}

func NewBillingHandler(billingService *billing.Service, webhookSecret string) *BillingHandler {
	return &BillingHandler{billingService: billingService, webhookSecret: webhookSecret}
}

// Webhook handles POST /api/v1/billing/webhook. The payment provider calls
// this when a subscription starts, renews, or lapses.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Secret")), []byte(h.webhookSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req dto.BillingWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	if err := h.billingService.SetPlanByEmail(r.Context(), req.Email, req.Plan); err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownPlan):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown plan"})
		case errors.Is(err, billing.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update plan"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Plan updated"})
}
