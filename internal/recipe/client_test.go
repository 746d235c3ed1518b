package recipe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
)

// newTestClient points a Client at handler through httptest.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL: srv.URL + "/recipes",
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

// =========================================================================
// FIND BY INGREDIENTS
// =========================================================================

func TestFindByIngredients_RequestAndDecode(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":1,"title":"Omelette","image":"o.jpg","usedIngredientCount":2,"missedIngredientCount":1,
			"usedIngredients":[{"name":"eggs","amount":2,"unit":"","original":"2 eggs"}],"missedIngredients":[]}]`)
	})

	res, err := c.FindByIngredients(context.Background(), []string{"eggs", " cheese ", ""}, 0, 0)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/recipes/findByIngredients", got.URL.Path)
	assert.Equal(t, "test-key", got.Header.Get("x-api-key"))
	assert.Equal(t, "eggs,cheese", got.URL.Query().Get("ingredients"))
	assert.Equal(t, "1", got.URL.Query().Get("ranking"))
	assert.Equal(t, "20", got.URL.Query().Get("number"))

	require.Len(t, res, 1)
	assert.Equal(t, "Omelette", res[0].Title)
	assert.Equal(t, 2, res[0].UsedIngredientCount)
	assert.Equal(t, "eggs", res[0].UsedIngredients[0].Name)
}

func TestFindByIngredients_MinimizeMissing(t *testing.T) {
	var query url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		io.WriteString(w, `[]`)
	})

	res, err := c.FindByIngredients(context.Background(), []string{"rice"}, model.MinimizeMissing, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, "2", query.Get("ranking"))
	assert.Equal(t, "5", query.Get("number"))
}

func TestFindByIngredients_NoIngredients(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.FindByIngredients(context.Background(), []string{" "}, 0, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// RECIPE DETAILS
// =========================================================================

func TestGetRecipeDetails_MapsExtendedIngredients(t *testing.T) {
	var query url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/716429/information", r.URL.Path)
		query = r.URL.Query()
		io.WriteString(w, `{"id":716429,"title":"Pasta","image":"p.jpg","servings":2,"readyInMinutes":45,
			"instructions":null,
			"extendedIngredients":[{"name":"flour","amount":1.5,"unit":"cups","original":"1 1/2 cups flour"}]}`)
	})

	d, err := c.GetRecipeDetails(context.Background(), "716429", model.DetailOptions{AddWinePairing: true})
	require.NoError(t, err)

	assert.Equal(t, "false", query.Get("includeNutrition"))
	assert.Equal(t, "true", query.Get("addWinePairing"))
	assert.Equal(t, "false", query.Get("addTasteData"))

	assert.Equal(t, 716429, d.ID)
	assert.Equal(t, 45, d.ReadyInMinutes)
	assert.Equal(t, "", d.Instructions)
	require.Len(t, d.Ingredients, 1)
	assert.Equal(t, model.RecipeIngredient{Name: "flour", Amount: 1.5, Unit: "cups", Original: "1 1/2 cups flour"}, d.Ingredients[0])
}

func TestGetRecipeDetails_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
				io.WriteString(w, `{"status":"failure","message":"quota"}`)
			},
		},
		{
			name: "malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"id":`)
			},
		},
		{
			name: "payload without id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.GetRecipeDetails(context.Background(), "1", model.DetailOptions{})
			assert.ErrorIs(t, err, apperror.ErrRecipeService)
		})
	}
}

func TestGetRecipeDetails_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base, APIKey: "k", Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = c.GetRecipeDetails(context.Background(), "1", model.DetailOptions{})
	assert.ErrorIs(t, err, apperror.ErrRecipeService)
}

func TestGetRecipeDetails_InvalidID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.GetRecipeDetails(context.Background(), "custom-abc", model.DetailOptions{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k", RatePerSec: 0.001, Burst: 1},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	// The first call spends the only token.
	_, err = c.FindByIngredients(context.Background(), []string{"rice"}, 0, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.FindByIngredients(ctx, []string{"rice"}, 0, 0)
	assert.ErrorIs(t, err, apperror.ErrRecipeService)
}
