package recipe

import "time"

type Ingredient struct {
	Name     string  `json:"name" firestore:"name"`
	Quantity float64 `json:"quantity" firestore:"quantity,omitempty"`
	Unit     string  `json:"unit" firestore:"unit,omitempty"`
}

type Recipe struct {
	ID          string       `json:"id" firestore:"-"`
	Title       string       `json:"title" firestore:"title"`
	Description string       `json:"description" firestore:"description,omitempty"`
	Servings    int          `json:"servings" firestore:"servings,omitempty"`
	Ingredients []Ingredient `json:"ingredients" firestore:"ingredients"`
	Steps       []string     `json:"steps" firestore:"steps,omitempty"`
	CreatedBy   string       `json:"createdBy" firestore:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt" firestore:"updatedAt"`
}

// WithAvailability decorates a recipe with the ingredient names the family
// fridge is currently missing.
type WithAvailability struct {
	Recipe
	MissingIngredients []string `json:"missingIngredients"`
}

type CreateRecipeRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Servings    int          `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
}

type UpdateRecipeRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Servings    int          `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
}
