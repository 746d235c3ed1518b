package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/service"
)

// RecipeHandler serves typed recipe lookups.
//
//	GET /api/recipes/search?ingredients=a,b&ranking=1|2&number=n
//	GET /api/recipes/{id}?includeNutrition=&addWinePairing=&addTasteData=
type RecipeHandler struct {
	recipes service.RecipeService
	logger  *slog.Logger
}

// NewRecipeHandler creates a RecipeHandler.
func NewRecipeHandler(recipes service.RecipeService, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, logger: logger}
}

// Routes mounts the recipe endpoints on r.
func (h *RecipeHandler) Routes(r chi.Router) {
	r.Route("/recipes", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/{id}", h.HandleDetails)
	})
}

type searchQuery struct {
	Ranking int `json:"ranking" validate:"omitempty,oneof=1 2"`
	Number  int `json:"number" validate:"omitempty,min=1,max=100"`
}

// HandleSearch finds recipes that use the given ingredients.
func (h *RecipeHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var query searchQuery
	var err error
	if query.Ranking, err = queryInt(q.Get("ranking"), "ranking"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if query.Number, err = queryInt(q.Get("number"), "number"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := check(query); err != nil {
		writeError(w, h.logger, err)
		return
	}

	results, err := h.recipes.FindByIngredients(r.Context(),
		strings.Split(q.Get("ingredients"), ","), model.Ranking(query.Ranking), query.Number)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleDetails returns one recipe with its ingredient list.
func (h *RecipeHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var opts model.DetailOptions
	flags := []struct {
		name string
		dst  *bool
	}{
		{"includeNutrition", &opts.IncludeNutrition},
		{"addWinePairing", &opts.AddWinePairing},
		{"addTasteData", &opts.AddTasteData},
	}
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed(f.name, f.name+" must be true or false"))
			return
		}
		*f.dst = b
	}

	detail, err := h.recipes.GetRecipeDetails(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// queryInt parses an optional integer query value; empty means zero.
func queryInt(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.ValidationFailed(field, field+" must be a number")
	}
	return n, nil
}
