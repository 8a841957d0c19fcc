package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pantryPalAPI/internal/types/mealplan"
	"pantryPalAPI/middleware"
	"pantryPalAPI/services"
)

type MealPlanHandler struct {
	mealPlanService *services.MealPlanService
}

func NewMealPlanHandler(mealPlanService *services.MealPlanService) *MealPlanHandler {
	return &MealPlanHandler{
		mealPlanService: mealPlanService,
	}
}

// GetWeek returns seven day plans starting at ?start=YYYY-MM-DD, defaulting
// to today.
func (h *MealPlanHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	start := r.URL.Query().Get("start")
	if start == "" {
		start = time.Now().Format("2006-01-02")
	}

	week, err := h.mealPlanService.GetWeek(ctx, clerkID, start)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, week)
}

func (h *MealPlanHandler) AssignMeal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req mealplan.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RecipeID == "" {
		respondWithError(w, http.StatusBadRequest, "Recipe ID is required")
		return
	}

	if err := h.mealPlanService.Assign(ctx, clerkID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *MealPlanHandler) ClearSlot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req mealplan.ClearSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.mealPlanService.ClearSlot(ctx, clerkID, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
