package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
)

// =========================================================================
// FAKE RECIPE SERVICE
// =========================================================================

// fakeRecipes serves canned details and fails for ids it does not know.
type fakeRecipes struct {
	mu      sync.Mutex
	details map[string]*model.RecipeDetail
	calls   map[string]int
	delay   time.Duration
}

func newFakeRecipes(details map[string][]model.RecipeIngredient) *fakeRecipes {
	f := &fakeRecipes{details: map[string]*model.RecipeDetail{}, calls: map[string]int{}}
	for id, ings := range details {
		f.details[id] = &model.RecipeDetail{Title: "recipe " + id, Ingredients: ings}
	}
	return f
}

func (f *fakeRecipes) FindByIngredients(context.Context, []string, model.Ranking, int) ([]model.RecipeSummary, error) {
	return nil, nil
}

func (f *fakeRecipes) GetRecipeDetails(ctx context.Context, id string, _ model.DetailOptions) (*model.RecipeDetail, error) {
	f.mu.Lock()
	f.calls[id]++
	d, ok := f.details[id]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperror.RecipeService("timed out", ctx.Err())
		}
	}
	if !ok {
		return nil, apperror.RecipeService("recipe "+id+" unavailable", nil)
	}
	return d, nil
}

func (f *fakeRecipes) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

const week = "2026-03-02"

func newPlanner(f *fixture, recipes RecipeService, opts ...Option) *MealPlanner {
	return NewMealPlanner(f.repo.MealPlans(), recipes, discardLogger(), opts...)
}

func recipeEntry(id string) model.MealEntry {
	return model.MealEntry{ID: id, Title: "Recipe " + id, Type: model.EntryRecipe}
}

func schedule(t *testing.T, p *MealPlanner, s *UserStore, day, meal string, e model.MealEntry) {
	t.Helper()
	_, err := p.SetMeal(context.Background(), s, week, day, meal, e)
	require.NoError(t, err)
}

// =========================================================================
// GRID
// =========================================================================

func TestSetMeal_AndGetWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(nil))

	schedule(t, p, s, "monday", "dinner", recipeEntry("42"))
	custom, err := p.SetMeal(ctx, s, week, "friday", "lunch", model.MealEntry{Title: "Leftovers", Notes: "from Thursday", Type: model.EntryCustom})
	require.NoError(t, err)
	assert.Contains(t, custom.ID, "custom-")

	got, err := p.GetWeek(ctx, s, week)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "42", got["monday-dinner"].ID)
	assert.Equal(t, "from Thursday", got["friday-lunch"].Notes)

	other, err := p.GetWeek(ctx, s, "2026-03-09")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSetMeal_Validation(t *testing.T) {
	tests := []struct {
		name    string
		week    string
		day     string
		meal    string
		entry   model.MealEntry
		wantErr error
	}{
		{"unknown day", week, "funday", "lunch", recipeEntry("1"), apperror.ErrValidation},
		{"unknown meal", week, "monday", "brunch", recipeEntry("1"), apperror.ErrValidation},
		{"week not a monday", "2026-03-03", "monday", "lunch", recipeEntry("1"), apperror.ErrValidation},
		{"recipe without id", week, "monday", "lunch", model.MealEntry{Title: "x", Type: model.EntryRecipe}, apperror.ErrValidation},
		{"custom without title", week, "monday", "lunch", model.MealEntry{Type: model.EntryCustom}, apperror.ErrValidation},
		{"unknown type", week, "monday", "lunch", model.MealEntry{Title: "x", Type: "snack"}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.loggedIn(t, "ada@example.com")
			p := newPlanner(f, newFakeRecipes(nil))

			_, err := p.SetMeal(context.Background(), s, tt.week, tt.day, tt.meal, tt.entry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlanner_RequiresLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := newPlanner(f, newFakeRecipes(nil))
	anon := f.open(t, "anon")

	_, err := p.SetMeal(ctx, anon, week, "monday", "lunch", recipeEntry("1"))
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = p.GenerateShoppingList(ctx, anon, week)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestClearSlotAndWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(nil))

	schedule(t, p, s, "monday", "breakfast", recipeEntry("1"))
	schedule(t, p, s, "tuesday", "lunch", recipeEntry("2"))

	require.NoError(t, p.ClearSlot(ctx, s, week, "monday", "breakfast"))
	require.NoError(t, p.ClearSlot(ctx, s, week, "monday", "breakfast"))
	got, err := p.GetWeek(ctx, s, week)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, p.ClearWeek(ctx, s, week))
	got, err = p.GetWeek(ctx, s, week)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =========================================================================
// SHOPPING LIST GENERATION
// =========================================================================

func TestGenerate_SumsSameIngredientAcrossRecipes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "flour", Amount: 1, Unit: "cup"}},
		"B": {{Name: "Flour", Amount: 2, Unit: "cup"}},
	}))
	schedule(t, p, s, "monday", "breakfast", recipeEntry("A"))
	schedule(t, p, s, "monday", "lunch", recipeEntry("B"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "flour", res.Items[0].Name)
	assert.Equal(t, 3.0, res.Items[0].Amount)
	assert.Equal(t, "cup", res.Items[0].Unit)
	assert.Contains(t, res.Items[0].ID, "gen-")
	assert.Empty(t, res.FailedRecipeIDs)
}

func TestGenerate_IDsStayDistinctWhenNamesContainSeparators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "salt-and", Amount: 1, Unit: "pepper"}},
		"B": {{Name: "salt", Amount: 1, Unit: "and-pepper"}},
	}))
	schedule(t, p, s, "monday", "breakfast", recipeEntry("A"))
	schedule(t, p, s, "monday", "lunch", recipeEntry("B"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.NotEqual(t, res.Items[0].ID, res.Items[1].ID)

	require.NoError(t, s.RemoveShoppingItem(ctx, res.Items[0].ID))
	list, err := s.GetShoppingList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "salt", list[0].Name)
}

func TestGenerate_ExcludesPantryItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	_, err := s.AddToPantry(ctx, PantryInput{Name: "Flour"})
	require.NoError(t, err)

	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "flour", Amount: 1, Unit: "cup"}, {Name: "eggs", Amount: 2}},
		"B": {{Name: "flour", Amount: 2, Unit: "cup"}},
	}))
	schedule(t, p, s, "monday", "breakfast", recipeEntry("A"))
	schedule(t, p, s, "monday", "lunch", recipeEntry("B"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "eggs", res.Items[0].Name)
	assert.NotEmpty(t, res.Items[0].ID)
}

func TestGenerate_OneFailedFetchStillAggregatesTheRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "rice", Amount: 1, Unit: "cup"}},
		"C": {{Name: "beans", Amount: 400, Unit: "g"}},
	}))
	schedule(t, p, s, "monday", "dinner", recipeEntry("A"))
	schedule(t, p, s, "tuesday", "dinner", recipeEntry("broken"))
	schedule(t, p, s, "wednesday", "dinner", recipeEntry("C"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	assert.Equal(t, []string{"broken"}, res.FailedRecipeIDs)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "rice", res.Items[0].Name)
	assert.Equal(t, "beans", res.Items[1].Name)
}

func TestGenerate_SumsRegardlessOfUnitKeepingFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "sugar", Amount: 1, Unit: "cup"}},
		"B": {{Name: "sugar", Amount: 50, Unit: "g"}},
	}))
	schedule(t, p, s, "monday", "breakfast", recipeEntry("A"))
	schedule(t, p, s, "sunday", "dinner", recipeEntry("B"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, 51.0, res.Items[0].Amount)
	assert.Equal(t, "cup", res.Items[0].Unit)
}

func TestGenerate_RepeatedRecipeCountsTwiceButFetchesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	recipes := newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "oats", Amount: 0.333, Unit: "cup"}, {Name: "salt"}},
	})
	p := newPlanner(f, recipes)
	schedule(t, p, s, "monday", "breakfast", recipeEntry("A"))
	schedule(t, p, s, "tuesday", "breakfast", recipeEntry("A"))
	_, err := p.SetMeal(ctx, s, week, "wednesday", "breakfast", model.MealEntry{Title: "Toast", Type: model.EntryCustom})
	require.NoError(t, err)

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	assert.Equal(t, 1, recipes.callCount("A"))
	require.Len(t, res.Items, 2)
	assert.Equal(t, 0.67, res.Items[0].Amount, "rounded to two decimals")
	assert.Equal(t, 2.0, res.Items[1].Amount, "missing amount counts as one")
}

func TestGenerate_OrderFollowsTheGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"sun": {{Name: "last", Amount: 1}},
		"mon": {{Name: "first", Amount: 1}},
		"wed": {{Name: "middle", Amount: 1}},
	}))
	// Planned out of order on purpose.
	schedule(t, p, s, "sunday", "dinner", recipeEntry("sun"))
	schedule(t, p, s, "wednesday", "lunch", recipeEntry("wed"))
	schedule(t, p, s, "monday", "breakfast", recipeEntry("mon"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	names := []string{}
	for _, it := range res.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"first", "middle", "last"}, names)
}

func TestGenerate_OverwritesSavedList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	_, err := s.AddShoppingItem(ctx, "Batteries", 4, "")
	require.NoError(t, err)

	p := newPlanner(f, newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "rice", Amount: 1, Unit: "cup"}},
	}))
	schedule(t, p, s, "monday", "dinner", recipeEntry("A"))

	_, err = p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)

	list, err := s.GetShoppingList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rice", list[0].Name)
}

func TestGenerate_EmptyWeekClearsList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	_, err := s.AddShoppingItem(ctx, "Batteries", 4, "")
	require.NoError(t, err)
	p := newPlanner(f, newFakeRecipes(nil))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.FailedRecipeIDs)

	list, err := s.GetShoppingList(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGenerate_SlowRecipeTimesOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ada@example.com")
	recipes := newFakeRecipes(map[string][]model.RecipeIngredient{
		"A": {{Name: "rice", Amount: 1}},
	})
	recipes.delay = time.Second
	p := newPlanner(f, recipes, WithFetchTimeout(20*time.Millisecond))
	schedule(t, p, s, "monday", "dinner", recipeEntry("A"))

	res, err := p.GenerateShoppingList(ctx, s, week)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.FailedRecipeIDs)
	assert.Empty(t, res.Items)
}
