package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/service"
)

// ShoppingHandler serves the saved shopping list.
//
//	GET    /api/shopping-list
//	PUT    /api/shopping-list            replace the whole list
//	POST   /api/shopping-list            add one item at the top
//	DELETE /api/shopping-list/{id}
//	POST   /api/shopping-list/to-pantry  move selected items to the pantry
type ShoppingHandler struct {
	stores *service.StoreFactory
	logger *slog.Logger
}

// NewShoppingHandler creates a ShoppingHandler.
func NewShoppingHandler(stores *service.StoreFactory, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{stores: stores, logger: logger}
}

// Routes mounts the shopping list endpoints on r.
func (h *ShoppingHandler) Routes(r chi.Router) {
	r.Route("/shopping-list", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Put("/", h.HandleReplace)
		r.Post("/", h.HandleAdd)
		r.Post("/to-pantry", h.HandleMoveToPantry)
		r.Delete("/{id}", h.HandleRemove)
	})
}

type shoppingItemRequest struct {
	ID     string  `json:"id" validate:"max=200"`
	Name   string  `json:"name" validate:"required,max=100"`
	Amount float64 `json:"amount" validate:"gte=0"`
	Unit   string  `json:"unit" validate:"max=30"`
}

type replaceListRequest struct {
	Items []shoppingItemRequest `json:"items" validate:"max=500,dive"`
}

type moveRequest struct {
	IDs []string `json:"ids" validate:"max=500,dive,required"`
}

type moveResponse struct {
	Moved int `json:"moved"`
}

// HandleList returns the list; empty when logged out.
func (h *ShoppingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := store.GetShoppingList(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleReplace overwrites the list.
func (h *ShoppingHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceListRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]model.ShoppingListItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.ShoppingListItem{ID: it.ID, Name: it.Name, Amount: it.Amount, Unit: it.Unit}
	}

	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := store.SetShoppingList(r.Context(), items); err != nil {
		writeError(w, h.logger, err)
		return
	}
	saved, err := store.GetShoppingList(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleAdd puts a hand-written item at the top of the list.
func (h *ShoppingHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req shoppingItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := store.AddShoppingItem(r.Context(), req.Name, req.Amount, req.Unit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleRemove deletes one item. Unknown ids still get 204.
func (h *ShoppingHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := store.RemoveShoppingItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMoveToPantry moves the selected items into the pantry.
func (h *ShoppingHandler) HandleMoveToPantry(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	moved, err := store.MoveShoppingItemsToPantry(r.Context(), req.IDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Moved: moved})
}
