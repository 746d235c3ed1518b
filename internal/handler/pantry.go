package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/service"
)

// PantryHandler serves the pantry.
//
//	GET    /api/pantry?q=&sort=name|expiry|added
//	POST   /api/pantry
//	PATCH  /api/pantry/{id}
//	DELETE /api/pantry/{id}
type PantryHandler struct {
	stores *service.StoreFactory
	logger *slog.Logger
}

// NewPantryHandler creates a PantryHandler.
func NewPantryHandler(stores *service.StoreFactory, logger *slog.Logger) *PantryHandler {
	return &PantryHandler{stores: stores, logger: logger}
}

// Routes mounts the pantry endpoints on r.
func (h *PantryHandler) Routes(r chi.Router) {
	r.Route("/pantry", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleRemove)
	})
}

type pantryAddRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Quantity   float64 `json:"quantity" validate:"gte=0"`
	Unit       string  `json:"unit" validate:"max=30"`
	ExpiryDate string  `json:"expiryDate"`
}

// pantryUpdateRequest uses pointers so absent fields are left alone.
// An explicit "expiryDate": "" clears the date.
type pantryUpdateRequest struct {
	Name       *string  `json:"name" validate:"omitnil,max=100"`
	Quantity   *float64 `json:"quantity" validate:"omitnil,gte=0"`
	Unit       *string  `json:"unit" validate:"omitnil,max=30"`
	ExpiryDate *string  `json:"expiryDate"`
}

type pantryQuery struct {
	Sort string `json:"sort" validate:"omitempty,oneof=name expiry added"`
}

// pantryItemView adds the expiry status the pantry table highlights.
type pantryItemView struct {
	model.PantryItem
	ExpiringSoon bool `json:"expiringSoon"`
	Expired      bool `json:"expired"`
}

// parseDate accepts a bare date (what a date input sends) or RFC 3339.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.ValidationFailed("expiryDate", "Expiry date must be YYYY-MM-DD")
}

// HandleList returns the pantry, searched and sorted by the query, with
// each item's expiry status. Empty when logged out.
func (h *PantryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := pantryQuery{Sort: q.Get("sort")}
	if err := check(query); err != nil {
		writeError(w, h.logger, err)
		return
	}

	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := store.FilterPantry(r.Context(), q.Get("q"), query.Sort)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := store.Now()
	views := make([]pantryItemView, len(items))
	for i, it := range items {
		views[i] = pantryItemView{
			PantryItem:   it,
			ExpiringSoon: it.ExpiringSoon(now),
			Expired:      it.Expired(now),
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleAdd adds one item.
func (h *PantryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req pantryAddRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := store.AddToPantry(r.Context(), service.PantryInput{
		Name:       req.Name,
		Quantity:   req.Quantity,
		Unit:       req.Unit,
		ExpiryDate: expiry,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdate edits one item.
func (h *PantryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req pantryUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	upd := service.PantryUpdate{Name: req.Name, Quantity: req.Quantity, Unit: req.Unit}
	if req.ExpiryDate != nil {
		expiry, err := parseDate(*req.ExpiryDate)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		upd.ExpiryDate = expiry
		upd.ClearExpiry = expiry == nil
	}

	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := store.UpdatePantryItem(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleRemove deletes one item. Unknown ids still get 204.
func (h *PantryHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	store, err := openStore(h.stores, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := store.RemoveFromPantry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
