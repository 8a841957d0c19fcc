package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/middleware"
	"pantryPalAPI/services"
)

type PremiumHandler struct {
	premiumService *services.PremiumService
}

func NewPremiumHandler(premiumService *services.PremiumService) *PremiumHandler {
	return &PremiumHandler{premiumService: premiumService}
}

type syncRequest struct {
	FamilyID string `json:"familyId"`
}

// SyncPremium reconciles the caller's family against the billing provider on
// demand. Unlike the webhook, this is user-triggered, so failures surface to
// the caller as typed errors the client can branch on.
func (h *PremiumHandler) SyncPremium(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		middleware.RecordPremiumSync(string(apperr.Unauthenticated))
		respondWithAppError(w, apperr.New(apperr.Unauthenticated, "user not authenticated"))
		return
	}

	// Body is optional; {familyId} just cross-checks the caller's family.
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.premiumService.SyncPremium(ctx, clerkID, req.FamilyID)
	if err != nil {
		log.Printf("Premium sync failed for %s: %v", clerkID, err)
		middleware.RecordPremiumSync(string(apperr.KindOf(err)))
		respondWithAppError(w, err)
		return
	}

	middleware.RecordPremiumSync("ok")
	respondWithJSON(w, http.StatusOK, result)
}
