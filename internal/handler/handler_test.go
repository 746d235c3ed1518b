package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/auth"
	"github.com/sakif/foodsaver/internal/handler"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/repository/kv"
	"github.com/sakif/foodsaver/internal/service"
	"github.com/sakif/foodsaver/internal/storage/sqlite"
)

// =========================================================================
// TEST FIXTURES
// =========================================================================

// scopeHeader lets tests pick the client scope without going through the
// signed cookie.
const scopeHeader = "X-Test-Scope"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecipes serves canned recipe details.
type fakeRecipes struct {
	mu         sync.Mutex
	details    map[string]*model.RecipeDetail
	results    []model.RecipeSummary
	lastSearch []string
	lastRank   model.Ranking
	lastLimit  int
	lastOpts   model.DetailOptions
}

func (f *fakeRecipes) FindByIngredients(_ context.Context, ings []string, ranking model.Ranking, limit int) ([]model.RecipeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch, f.lastRank, f.lastLimit = ings, ranking, limit
	return f.results, nil
}

func (f *fakeRecipes) GetRecipeDetails(_ context.Context, id string, opts model.DetailOptions) (*model.RecipeDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	d, ok := f.details[id]
	if !ok {
		return nil, apperror.RecipeService("recipe service returned status 404", nil)
	}
	return d, nil
}

// fakeForwarder records the proxied call and answers with a canned reply.
type fakeForwarder struct {
	hasKey bool
	status int
	body   string
	err    error
	path   string
	params url.Values
}

func (f *fakeForwarder) HasKey() bool { return f.hasKey }

func (f *fakeForwarder) Forward(_ context.Context, path string, params url.Values) (int, []byte, error) {
	f.path, f.params = path, params
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.status, []byte(f.body), nil
}

type testAPI struct {
	router  chi.Router
	recipes *fakeRecipes
	proxy   *fakeForwarder
}

// newTestAPI mounts every handler under /api, backed by in-memory SQLite.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	repo := kv.New(db)
	stores := service.NewStoreFactory(repo, repo.Sessions(), logger)
	recipes := &fakeRecipes{details: map[string]*model.RecipeDetail{}}
	planner := service.NewMealPlanner(repo.MealPlans(), recipes, logger)
	proxy := &fakeForwarder{hasKey: true, status: http.StatusOK, body: `[]`}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			scope := req.Header.Get(scopeHeader)
			if scope == "" {
				scope = "default-scope"
			}
			next.ServeHTTP(w, req.WithContext(auth.WithScope(req.Context(), scope)))
		})
	})
	r.Get("/healthz", handler.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		handler.NewAccountHandler(stores, logger).Routes(r)
		handler.NewPantryHandler(stores, logger).Routes(r)
		handler.NewCookbookHandler(stores, logger).Routes(r)
		handler.NewShoppingHandler(stores, logger).Routes(r)
		handler.NewPlannerHandler(stores, planner, logger).Routes(r)
		handler.NewRecipeHandler(recipes, logger).Routes(r)
		handler.NewProxyHandler(proxy, logger).Routes(r)
	})

	return &testAPI{router: r, recipes: recipes, proxy: proxy}
}

// call sends one request as scope. body may be nil, a string, or any
// value to encode as JSON.
func (a *testAPI) call(t *testing.T, scope, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(scopeHeader, scope)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// login registers email and logs it in on scope.
func (a *testAPI) login(t *testing.T, scope, email string) {
	t.Helper()
	rr := a.call(t, scope, http.MethodPost, "/api/account/register", map[string]string{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = a.call(t, scope, http.MethodPost, "/api/account/login", map[string]string{
		"email":    email,
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

// =========================================================================
// SHARED BEHAVIOUR
// =========================================================================

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rr := api.call(t, "s", http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestErrorResponses(t *testing.T) {
	api := newTestAPI(t)

	t.Run("malformed JSON is a validation error", func(t *testing.T) {
		rr := api.call(t, "s", http.MethodPost, "/api/account/login", `{"email":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeBody[handler.ErrorResponse](t, rr)
		assert.Equal(t, "validation_error", resp.Error)
		assert.Equal(t, "body", resp.Field)
	})

	t.Run("logged-out writes are unauthorized", func(t *testing.T) {
		rr := api.call(t, "s", http.MethodPost, "/api/pantry", map[string]any{"name": "Rice"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		resp := decodeBody[handler.ErrorResponse](t, rr)
		assert.Equal(t, "unauthorized", resp.Error)
		assert.Equal(t, "User must be logged in to add to pantry", resp.Message)
	})

	t.Run("missing scope is an internal error without details", func(t *testing.T) {
		logger := discardLogger()
		db, err := sqlite.New(":memory:")
		require.NoError(t, err)
		defer db.Close()
		repo := kv.New(db)
		h := handler.NewPantryHandler(service.NewStoreFactory(repo, repo.Sessions(), logger), logger)

		rr := httptest.NewRecorder()
		h.HandleList(rr, httptest.NewRequest(http.MethodGet, "/api/pantry", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		resp := decodeBody[handler.ErrorResponse](t, rr)
		assert.Equal(t, "An internal error occurred", resp.Message)
	})
}
