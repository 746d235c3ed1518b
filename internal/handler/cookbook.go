package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/service"
)

// CookbookHandler serves saved recipes.
//
//	GET    /api/cookbook?q=&category=&sort=title|time|added
//	POST   /api/cookbook
//	PATCH  /api/cookbook/{id}/notes
//	DELETE /api/cookbook/{id}
type CookbookHandler struct {
	stores *service.StoreFactory
	logger *slog.Logger
}

// NewCookbookHandler creates a CookbookHandler.
func NewCookbookHandler(stores *service.StoreFactory, logger *slog.Logger) *CookbookHandler {
	return &CookbookHandler{stores: stores, logger: logger}
}

// Routes mounts the cookbook endpoints on r.
func (h *CookbookHandler) Routes(r chi.Router) {
	r.Route("/cookbook", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Patch("/{id}/notes", h.HandleNotes)
		r.Delete("/{id}", h.HandleRemove)
	})
}

type cookbookAddRequest struct {
	RecipeID       string   `json:"recipeId" validate:"max=50"`
	Title          string   `json:"title" validate:"required,max=200"`
	Image          string   `json:"image" validate:"omitempty,url"`
	Ingredients    []string `json:"ingredients" validate:"max=200,dive,max=500"`
	Instructions   string   `json:"instructions" validate:"max=20000"`
	Servings       int      `json:"servings" validate:"gte=0"`
	ReadyInMinutes int      `json:"readyInMinutes" validate:"gte=0"`
	Tags           []string `json:"tags" validate:"max=30,dive,max=50"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type cookbookQuery struct {
	Sort string `json:"sort" validate:"omitempty,oneof=title time added"`
}

// HandleList returns the cookbook, filtered and sorted by the query.
func (h *CookbookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := cookbookQuery{Sort: q.Get("sort")}
	if err := check(query); err != nil {
		writeError(w, h.logger, err)
		return
	}

	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	recipes, err := store.FilterCookbook(r.Context(), q.Get("q"), q.Get("category"), query.Sort)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// HandleAdd saves a recipe.
func (h *CookbookHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req cookbookAddRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := store.AddToCookbook(r.Context(), service.CookbookInput{
		RecipeID:       req.RecipeID,
		Title:          req.Title,
		Image:          req.Image,
		Ingredients:    req.Ingredients,
		Instructions:   req.Instructions,
		Servings:       req.Servings,
		ReadyInMinutes: req.ReadyInMinutes,
		Tags:           req.Tags,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleNotes replaces a recipe's notes.
func (h *CookbookHandler) HandleNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := store.UpdateCookbookNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleRemove deletes a saved recipe. Unknown ids still get 204.
func (h *CookbookHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := store.RemoveFromCookbook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
