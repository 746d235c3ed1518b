package model

// Ranking selects how the recipe API orders ingredient search results.
type Ranking int

const (
	MaximizeUsed    Ranking = 1
	MinimizeMissing Ranking = 2
)

// RecipeSummary is one hit from an ingredient search.
type RecipeSummary struct {
	ID                    int                `json:"id"`
	Title                 string             `json:"title"`
	Image                 string             `json:"image"`
	UsedIngredientCount   int                `json:"usedIngredientCount"`
	MissedIngredientCount int                `json:"missedIngredientCount"`
	UsedIngredients       []RecipeIngredient `json:"usedIngredients"`
	MissedIngredients     []RecipeIngredient `json:"missedIngredients"`
}

// RecipeIngredient is one ingredient line of a recipe.
type RecipeIngredient struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

// RecipeDetail is the full record for a single recipe.
type RecipeDetail struct {
	ID             int                `json:"id"`
	Title          string             `json:"title"`
	Image          string             `json:"image"`
	Servings       int                `json:"servings"`
	ReadyInMinutes int                `json:"readyInMinutes"`
	Ingredients    []RecipeIngredient `json:"ingredients"`
	Instructions   string             `json:"instructions"`
}

// ShoppingListResult is what meal-plan aggregation produces. Recipes whose
// details could not be fetched are listed so callers can tell the user.
type ShoppingListResult struct {
	Items           []ShoppingListItem `json:"items"`
	FailedRecipeIDs []string           `json:"failedRecipeIds"`
}

// DetailOptions are the optional extras of a recipe detail lookup.
type DetailOptions struct {
	IncludeNutrition bool
	AddWinePairing   bool
	AddTasteData     bool
}
