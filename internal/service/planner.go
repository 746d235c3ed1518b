package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/repository"
)

// Account is the part of a UserStore the planner works through.
type Account interface {
	CurrentUserID() (string, bool)
	GetPantry(ctx context.Context) ([]model.PantryItem, error)
	SetShoppingList(ctx context.Context, items []model.ShoppingListItem) error
}

var _ Account = (*UserStore)(nil)

// MealPlanner manages the weekly grid and turns it into a shopping list.
type MealPlanner struct {
	plans   repository.MealPlanRepository
	recipes RecipeService
	logger  *slog.Logger
	opts    options
}

// NewMealPlanner wires the planner. WithFetchTimeout and
// WithFetchConcurrency tune shopping list generation.
func NewMealPlanner(
	plans repository.MealPlanRepository,
	recipes RecipeService,
	logger *slog.Logger,
	opts ...Option,
) *MealPlanner {
	return &MealPlanner{
		plans:   plans,
		recipes: recipes,
		logger:  logger,
		opts:    applyOptions(opts),
	}
}

func requirePlanner(acct Account) (string, error) {
	id, ok := acct.CurrentUserID()
	if !ok {
		return "", apperror.Unauthorized("User must be logged in to use the meal planner")
	}
	return id, nil
}

func validateWeek(weekKey string) error {
	if _, err := model.ParseWeekKey(weekKey); err != nil {
		return apperror.ValidationFailed("week", err.Error())
	}
	return nil
}

func validateSlot(day, meal string) error {
	if !model.ValidDay(day) {
		return apperror.ValidationFailed("day", fmt.Sprintf("unknown day %q", day))
	}
	if !model.ValidMeal(meal) {
		return apperror.ValidationFailed("meal", fmt.Sprintf("unknown meal %q", meal))
	}
	return nil
}

// GetWeek returns the plan for weekKey. Empty slots are absent.
func (p *MealPlanner) GetWeek(ctx context.Context, acct Account, weekKey string) (model.MealPlan, error) {
	userID, err := requirePlanner(acct)
	if err != nil {
		return nil, err
	}
	if err := validateWeek(weekKey); err != nil {
		return nil, err
	}
	plan, err := p.plans.GetWeek(ctx, userID, weekKey)
	if err != nil {
		return nil, fmt.Errorf("service/planner: loading week %s: %w", weekKey, err)
	}
	return plan, nil
}

// SetMeal puts entry into one slot, replacing whatever was there.
func (p *MealPlanner) SetMeal(ctx context.Context, acct Account, weekKey, day, meal string, entry model.MealEntry) (*model.MealEntry, error) {
	userID, err := requirePlanner(acct)
	if err != nil {
		return nil, err
	}
	if err := validateWeek(weekKey); err != nil {
		return nil, err
	}
	if err := validateSlot(day, meal); err != nil {
		return nil, err
	}

	entry.ID = strings.TrimSpace(entry.ID)
	entry.Title = strings.TrimSpace(entry.Title)
	switch entry.Type {
	case model.EntryRecipe:
		if entry.ID == "" || entry.Title == "" {
			return nil, apperror.ValidationFailed("entry", "Recipe entries need an id and a title")
		}
		entry.Notes = ""
	case model.EntryCustom:
		if entry.Title == "" {
			return nil, apperror.ValidationFailed("title", "Please enter a meal name")
		}
		if entry.ID == "" {
			entry.ID = "custom-" + xid.New().String()
		}
		entry.Image = ""
		entry.ReadyInMinutes = 0
	default:
		return nil, apperror.ValidationFailed("type", fmt.Sprintf("unknown entry type %q", entry.Type))
	}

	err = p.plans.UpdateWeek(ctx, userID, weekKey, func(plan model.MealPlan) error {
		plan[model.SlotKey(day, meal)] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/planner: saving slot: %w", err)
	}
	return &entry, nil
}

// ClearSlot empties one slot. Clearing an empty slot is fine.
func (p *MealPlanner) ClearSlot(ctx context.Context, acct Account, weekKey, day, meal string) error {
	userID, err := requirePlanner(acct)
	if err != nil {
		return err
	}
	if err := validateWeek(weekKey); err != nil {
		return err
	}
	if err := validateSlot(day, meal); err != nil {
		return err
	}
	err = p.plans.UpdateWeek(ctx, userID, weekKey, func(plan model.MealPlan) error {
		delete(plan, model.SlotKey(day, meal))
		return nil
	})
	if err != nil {
		return fmt.Errorf("service/planner: clearing slot: %w", err)
	}
	return nil
}

// ClearWeek empties every slot of the week.
func (p *MealPlanner) ClearWeek(ctx context.Context, acct Account, weekKey string) error {
	userID, err := requirePlanner(acct)
	if err != nil {
		return err
	}
	if err := validateWeek(weekKey); err != nil {
		return err
	}
	err = p.plans.UpdateWeek(ctx, userID, weekKey, func(plan model.MealPlan) error {
		for k := range plan {
			delete(plan, k)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("service/planner: clearing week: %w", err)
	}
	return nil
}

// GenerateShoppingList builds the week's shopping list and saves it as the
// user's list, replacing what was there.
//
// Every recipe slot contributes its ingredients; a recipe planned twice
// counts twice. Each distinct recipe is fetched once, concurrently. A
// recipe that cannot be fetched is skipped and reported in
// FailedRecipeIDs. Ingredients merge on their lower-cased name, summing
// amounts whatever the unit and keeping the first unit and spelling seen.
// A missing amount counts as 1. Anything whose name matches a pantry item
// is left out. Items come out in the order they were first met, walking
// Monday to Sunday and breakfast to dinner.
func (p *MealPlanner) GenerateShoppingList(ctx context.Context, acct Account, weekKey string) (*model.ShoppingListResult, error) {
	userID, err := requirePlanner(acct)
	if err != nil {
		return nil, err
	}
	if err := validateWeek(weekKey); err != nil {
		return nil, err
	}

	plan, err := p.plans.GetWeek(ctx, userID, weekKey)
	if err != nil {
		return nil, fmt.Errorf("service/planner: loading week %s: %w", weekKey, err)
	}

	var slots []string // recipe id per occupied recipe slot, in grid order
	var unique []string
	seen := map[string]bool{}
	for _, key := range model.SlotKeys() {
		entry, ok := plan[key]
		if !ok || entry.Type != model.EntryRecipe || entry.ID == "" {
			continue
		}
		slots = append(slots, entry.ID)
		if !seen[entry.ID] {
			seen[entry.ID] = true
			unique = append(unique, entry.ID)
		}
	}

	details := p.fetchAll(ctx, unique)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pantry, err := acct.GetPantry(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/planner: loading pantry: %w", err)
	}
	inPantry := make(map[string]bool, len(pantry))
	for _, item := range pantry {
		inPantry[ingredientKey(item.Name)] = true
	}

	result := &model.ShoppingListResult{
		Items:           []model.ShoppingListItem{},
		FailedRecipeIDs: []string{},
	}
	for _, id := range unique {
		if details[id] == nil {
			result.FailedRecipeIDs = append(result.FailedRecipeIDs, id)
		}
	}

	type line struct {
		name   string
		unit   string
		amount float64
	}
	var order []string
	lines := map[string]*line{}

	for _, id := range slots {
		d := details[id]
		if d == nil {
			continue
		}
		for _, ing := range d.Ingredients {
			key := ingredientKey(ing.Name)
			if key == "" || inPantry[key] {
				continue
			}
			amount := ing.Amount
			if amount == 0 {
				amount = 1
			}
			if l, ok := lines[key]; ok {
				l.amount += amount
				continue
			}
			lines[key] = &line{name: strings.TrimSpace(ing.Name), unit: ing.Unit, amount: amount}
			order = append(order, key)
		}
	}

	for _, key := range order {
		l := lines[key]
		result.Items = append(result.Items, model.ShoppingListItem{
			ID:     "gen-" + xid.New().String(),
			Name:   l.name,
			Amount: roundAmount(l.amount),
			Unit:   l.unit,
		})
	}

	if err := acct.SetShoppingList(ctx, result.Items); err != nil {
		return nil, fmt.Errorf("service/planner: saving shopping list: %w", err)
	}

	p.logger.Info("shopping list generated",
		slog.String("userID", userID),
		slog.String("week", weekKey),
		slog.Int("items", len(result.Items)),
		slog.Int("failedRecipes", len(result.FailedRecipeIDs)),
	)
	return result, nil
}

// fetchAll looks up every recipe with bounded concurrency. Failed lookups
// are logged and left out of the map; one failure never cancels the rest.
func (p *MealPlanner) fetchAll(ctx context.Context, ids []string) map[string]*model.RecipeDetail {
	results := make([]*model.RecipeDetail, len(ids))

	var g errgroup.Group
	g.SetLimit(p.opts.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, p.opts.fetchTimeout)
			defer cancel()

			d, err := p.recipes.GetRecipeDetails(callCtx, id, model.DetailOptions{})
			if err != nil {
				p.logger.Warn("could not fetch recipe",
					slog.String("recipeID", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = d
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*model.RecipeDetail, len(ids))
	for i, id := range ids {
		if results[i] != nil {
			out[id] = results[i]
		}
	}
	return out
}

func ingredientKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// roundAmount rounds to two decimals; negative totals become 0.
func roundAmount(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Round(v*100) / 100
}
