package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/recipe"
)

// Forwarder performs one upstream recipe API call on the browser's behalf.
// *recipe.Client implements it.
type Forwarder interface {
	HasKey() bool
	Forward(ctx context.Context, path string, params url.Values) (int, []byte, error)
}

// ProxyHandler is a thin pass-through to the recipe API so the key never
// reaches the browser.
//
//	GET /api/spoonacular?type=findByIngredients&ingredients=...&ranking=&number=
//	GET /api/spoonacular?type=information&recipeId=...&includeNutrition=...
//
// Error bodies use the {"error": "..."} shape the browser client expects,
// not ErrorResponse.
type ProxyHandler struct {
	upstream Forwarder
	logger   *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(upstream Forwarder, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{upstream: upstream, logger: logger}
}

// Routes mounts the proxy endpoint on r. Middleware passed in wraps only
// this route.
func (h *ProxyHandler) Routes(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.With(mw...).Get("/spoonacular", h.HandleProxy)
}

type proxyError struct {
	Error string `json:"error"`
}

// HandleProxy validates the query, forwards it and mirrors the upstream
// status and body.
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if !h.upstream.HasKey() {
		h.logger.Error("recipe proxy called without an API key configured")
		writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Missing API key"})
		return
	}

	path, params, err := recipe.ProxyTarget(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, proxyError{Error: recipe.ErrInvalidParameters.Error()})
		return
	}

	status, body, err := h.upstream.Forward(r.Context(), path, params)
	if err != nil {
		h.logger.Warn("recipe proxy failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apperror.ErrRecipeService) {
			writeJSON(w, http.StatusBadGateway, proxyError{Error: "Recipe service unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("writing proxy response", slog.String("error", err.Error()))
	}
}
