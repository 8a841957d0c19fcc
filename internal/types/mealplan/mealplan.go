package mealplan

const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
)

// DayPlan is one document per calendar day, keyed by the day in 2006-01-02
// form. Meals maps a slot name to a recipe ID.
type DayPlan struct {
	Day   string            `json:"day" firestore:"-"`
	Meals map[string]string `json:"meals" firestore:"meals"`
}

type AssignRequest struct {
	Day      string `json:"day"`
	Slot     string `json:"slot"`
	RecipeID string `json:"recipeId"`
}

type ClearSlotRequest struct {
	Day  string `json:"day"`
	Slot string `json:"slot"`
}

func ValidSlot(slot string) bool {
	switch slot {
	case SlotBreakfast, SlotLunch, SlotDinner:
		return true
	}
	return false
}
