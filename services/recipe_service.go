package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/recipe"
)

const recipesCollection = "recipes"

// FreeRecipeCap is how many recipes a family can keep without premium.
const FreeRecipeCap = 10

type RecipeService struct {
	client *firestore.Client
	store  Store
}

func NewRecipeService(client *firestore.Client, store Store) *RecipeService {
	return &RecipeService{client: client, store: store}
}

func (s *RecipeService) recipesRef(familyID string) *firestore.CollectionRef {
	return s.client.Collection(familiesCollection).Doc(familyID).Collection(recipesCollection)
}

// ListRecipes returns the family's recipes annotated with the ingredient
// names missing from the fridge.
func (s *RecipeService) ListRecipes(ctx context.Context, clerkID string) ([]*recipe.WithAvailability, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	stocked, err := s.stockedNames(ctx, familyID)
	if err != nil {
		return nil, err
	}

	iter := s.recipesRef(familyID).OrderBy("title", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	recipes := []*recipe.WithAvailability{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to list recipes", err)
		}

		rec := recipe.Recipe{}
		if err := snap.DataTo(&rec); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to decode recipe", err)
		}
		rec.ID = snap.Ref.ID

		missing := []string{}
		for _, ing := range rec.Ingredients {
			if !stocked[strings.ToLower(ing.Name)] {
				missing = append(missing, ing.Name)
			}
		}

		recipes = append(recipes, &recipe.WithAvailability{Recipe: rec, MissingIngredients: missing})
	}

	return recipes, nil
}

// CreateRecipe adds a recipe. Families over the free cap need an active
// premium entitlement on the family record.
func (s *RecipeService) CreateRecipe(ctx context.Context, clerkID string, req *recipe.CreateRecipeRequest) (*recipe.Recipe, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	if err := s.checkRecipeCap(ctx, familyID); err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &recipe.Recipe{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Servings:    req.Servings,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		CreatedBy:   clerkID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.recipesRef(familyID).Doc(rec.ID).Set(ctx, rec); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create recipe", err)
	}

	return rec, nil
}

func (s *RecipeService) UpdateRecipe(ctx context.Context, clerkID, recipeID string, req *recipe.UpdateRecipeRequest) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	_, err = s.recipesRef(familyID).Doc(recipeID).Update(ctx, []firestore.Update{
		{Path: "title", Value: req.Title},
		{Path: "description", Value: req.Description},
		{Path: "servings", Value: req.Servings},
		{Path: "ingredients", Value: req.Ingredients},
		{Path: "steps", Value: req.Steps},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return apperr.New(apperr.NotFound, "recipe not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update recipe", err)
	}
	return nil
}

func (s *RecipeService) DeleteRecipe(ctx context.Context, clerkID, recipeID string) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	if _, err := s.recipesRef(familyID).Doc(recipeID).Delete(ctx); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete recipe", err)
	}
	return nil
}

// RecipeExists reports whether the family has a recipe with the given ID.
func (s *RecipeService) RecipeExists(ctx context.Context, familyID, recipeID string) (bool, error) {
	_, err := s.recipesRef(familyID).Doc(recipeID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "failed to check recipe", err)
	}
	return true, nil
}

func (s *RecipeService) checkRecipeCap(ctx context.Context, familyID string) error {
	fam, err := s.store.GetFamily(ctx, familyID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.Internal, "failed to look up family", err)
	}
	if fam != nil && fam.PremiumActive {
		return nil
	}

	count, err := s.countRecipes(ctx, familyID)
	if err != nil {
		return err
	}
	if count >= FreeRecipeCap {
		return apperr.New(apperr.PermissionDenied, "recipe limit reached, premium required")
	}
	return nil
}

func (s *RecipeService) countRecipes(ctx context.Context, familyID string) (int64, error) {
	result, err := s.recipesRef(familyID).NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to count recipes", err)
	}

	value, ok := result["count"]
	if !ok {
		return 0, apperr.New(apperr.Internal, "count aggregation returned no result")
	}
	count, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, apperr.New(apperr.Internal, "unexpected count aggregation type")
	}
	return count.GetIntegerValue(), nil
}

// stockedNames collects lowercase fridge item names for availability checks.
func (s *RecipeService) stockedNames(ctx context.Context, familyID string) (map[string]bool, error) {
	iter := s.client.Collection(familiesCollection).Doc(familyID).Collection(fridgeCollection).
		Select("name").Documents(ctx)
	defer iter.Stop()

	stocked := map[string]bool{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to list fridge items", err)
		}
		if name, err := snap.DataAt("name"); err == nil {
			if s, ok := name.(string); ok {
				stocked[strings.ToLower(s)] = true
			}
		}
	}
	return stocked, nil
}
