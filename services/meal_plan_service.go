package services

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/mealplan"
)

const mealPlanCollection = "mealplan"

const dayFormat = "2006-01-02"

// MealPlanService manages the weekly planner. Writes are a premium feature;
// reads are free so a lapsed family still sees its old plan.
type MealPlanService struct {
	client  *firestore.Client
	store   Store
	recipes *RecipeService
}

func NewMealPlanService(client *firestore.Client, store Store, recipes *RecipeService) *MealPlanService {
	return &MealPlanService{client: client, store: store, recipes: recipes}
}

func (s *MealPlanService) planRef(familyID string) *firestore.CollectionRef {
	return s.client.Collection(familiesCollection).Doc(familyID).Collection(mealPlanCollection)
}

// GetWeek returns seven day plans starting at the given day. Days without a
// document come back with empty meals.
func (s *MealPlanService) GetWeek(ctx context.Context, clerkID, startDay string) ([]*mealplan.DayPlan, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(dayFormat, startDay)
	if err != nil {
		return nil, apperr.New(apperr.FailedPrecondition, "start day must be YYYY-MM-DD")
	}

	refs := make([]*firestore.DocumentRef, 0, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i).Format(dayFormat)
		refs = append(refs, s.planRef(familyID).Doc(day))
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to read meal plan", err)
	}

	week := make([]*mealplan.DayPlan, 0, 7)
	for _, snap := range snaps {
		plan := &mealplan.DayPlan{Day: snap.Ref.ID, Meals: map[string]string{}}
		if snap.Exists() {
			if err := snap.DataTo(plan); err != nil {
				return nil, apperr.Wrap(apperr.Internal, "failed to decode meal plan", err)
			}
			if plan.Meals == nil {
				plan.Meals = map[string]string{}
			}
		}
		week = append(week, plan)
	}

	return week, nil
}

// Assign puts a recipe into a day slot.
func (s *MealPlanService) Assign(ctx context.Context, clerkID string, req *mealplan.AssignRequest) error {
	familyID, err := s.requirePremium(ctx, clerkID)
	if err != nil {
		return err
	}

	if _, err := time.Parse(dayFormat, req.Day); err != nil {
		return apperr.New(apperr.FailedPrecondition, "day must be YYYY-MM-DD")
	}
	if !mealplan.ValidSlot(req.Slot) {
		return apperr.New(apperr.FailedPrecondition, "slot must be breakfast, lunch or dinner")
	}

	exists, err := s.recipes.RecipeExists(ctx, familyID, req.RecipeID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.NotFound, "recipe not found")
	}

	_, err = s.planRef(familyID).Doc(req.Day).Set(ctx,
		map[string]any{"meals": map[string]any{req.Slot: req.RecipeID}},
		firestore.Merge(firestore.FieldPath{"meals", req.Slot}))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to assign meal", err)
	}
	return nil
}

// ClearSlot removes whatever is planned for a day slot.
func (s *MealPlanService) ClearSlot(ctx context.Context, clerkID string, req *mealplan.ClearSlotRequest) error {
	familyID, err := s.requirePremium(ctx, clerkID)
	if err != nil {
		return err
	}

	if !mealplan.ValidSlot(req.Slot) {
		return apperr.New(apperr.FailedPrecondition, "slot must be breakfast, lunch or dinner")
	}

	_, err = s.planRef(familyID).Doc(req.Day).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"meals", req.Slot}, Value: firestore.Delete},
	})
	if status.Code(err) == codes.NotFound {
		return apperr.New(apperr.NotFound, "no plan for that day")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to clear meal slot", err)
	}
	return nil
}

func (s *MealPlanService) requirePremium(ctx context.Context, clerkID string) (string, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return "", err
	}

	fam, err := s.store.GetFamily(ctx, familyID)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.New(apperr.NotFound, "family record not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to look up family", err)
	}
	if !fam.PremiumActive {
		return "", apperr.New(apperr.PermissionDenied, "meal planning requires premium")
	}
	return familyID, nil
}
