package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/service"
)

// CurrentWeek can be used in place of a week key to mean "this week".
const CurrentWeek = "current"

// PlannerHandler serves the weekly meal planner.
//
//	GET    /api/planner/{week}
//	DELETE /api/planner/{week}
//	PUT    /api/planner/{week}/{day}/{meal}
//	DELETE /api/planner/{week}/{day}/{meal}
//	POST   /api/planner/{week}/shopping-list
//
// {week} is the date of the week's Monday (YYYY-MM-DD) or "current".
type PlannerHandler struct {
	stores  *service.StoreFactory
	planner *service.MealPlanner
	logger  *slog.Logger
	now     func() time.Time
}

// NewPlannerHandler creates a PlannerHandler.
func NewPlannerHandler(stores *service.StoreFactory, planner *service.MealPlanner, logger *slog.Logger) *PlannerHandler {
	return &PlannerHandler{stores: stores, planner: planner, logger: logger, now: time.Now}
}

// Routes mounts the planner endpoints on r.
func (h *PlannerHandler) Routes(r chi.Router) {
	r.Route("/planner/{week}", func(r chi.Router) {
		r.Get("/", h.HandleGetWeek)
		r.Delete("/", h.HandleClearWeek)
		r.Post("/shopping-list", h.HandleShoppingList)
		r.Put("/{day}/{meal}", h.HandleSetMeal)
		r.Delete("/{day}/{meal}", h.HandleClearSlot)
	})
}

type mealEntryRequest struct {
	ID             string `json:"id" validate:"max=100"`
	Title          string `json:"title" validate:"max=200"`
	Image          string `json:"image" validate:"omitempty,url"`
	ReadyInMinutes int    `json:"readyInMinutes" validate:"gte=0"`
	Notes          string `json:"notes" validate:"max=500"`
	Type           string `json:"type" validate:"required,oneof=recipe custom"`
}

type weekResponse struct {
	Week string         `json:"week"`
	Plan model.MealPlan `json:"plan"`
}

// weekParam resolves the {week} URL parameter.
func (h *PlannerHandler) weekParam(r *http.Request) string {
	week := chi.URLParam(r, "week")
	if week == CurrentWeek {
		return model.WeekKeyFor(h.now())
	}
	return week
}

// HandleGetWeek returns one week's plan. Empty slots are absent.
func (h *PlannerHandler) HandleGetWeek(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	week := h.weekParam(r)
	plan, err := h.planner.GetWeek(r.Context(), store, week)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, weekResponse{Week: week, Plan: plan})
}

// HandleSetMeal fills one slot.
func (h *PlannerHandler) HandleSetMeal(w http.ResponseWriter, r *http.Request) {
	var req mealEntryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.planner.SetMeal(r.Context(), store, h.weekParam(r),
		chi.URLParam(r, "day"), chi.URLParam(r, "meal"),
		model.MealEntry{
			ID:             req.ID,
			Title:          req.Title,
			Image:          req.Image,
			ReadyInMinutes: req.ReadyInMinutes,
			Notes:          req.Notes,
			Type:           req.Type,
		})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleClearSlot empties one slot.
func (h *PlannerHandler) HandleClearSlot(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	err = h.planner.ClearSlot(r.Context(), store, h.weekParam(r), chi.URLParam(r, "day"), chi.URLParam(r, "meal"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearWeek empties the whole week.
func (h *PlannerHandler) HandleClearWeek(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.planner.ClearWeek(r.Context(), store, h.weekParam(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleShoppingList builds the week's shopping list, saves it, and
// returns it along with any recipes that could not be fetched.
func (h *PlannerHandler) HandleShoppingList(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.planner.GenerateShoppingList(r.Context(), store, h.weekParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
