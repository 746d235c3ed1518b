package recipe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodsaver/internal/apperror"
)

func TestProxyTarget(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPath   string
		wantParams url.Values
		wantErr    bool
	}{
		{
			name:     "find with defaults",
			query:    "type=findByIngredients&ingredients=eggs,flour",
			wantPath: "findByIngredients",
			wantParams: url.Values{
				"ingredients": {"eggs,flour"},
				"ranking":     {"1"},
				"number":      {"20"},
			},
		},
		{
			name:     "find with explicit values",
			query:    "type=findByIngredients&ingredients=rice&ranking=2&number=5",
			wantPath: "findByIngredients",
			wantParams: url.Values{
				"ingredients": {"rice"},
				"ranking":     {"2"},
				"number":      {"5"},
			},
		},
		{
			name:     "information with defaults",
			query:    "type=information&recipeId=716429",
			wantPath: "716429/information",
			wantParams: url.Values{
				"includeNutrition": {"false"},
				"addWinePairing":   {"false"},
				"addTasteData":     {"false"},
			},
		},
		{
			name:     "information with flags",
			query:    "type=information&recipeId=7&includeNutrition=true&addTasteData=1",
			wantPath: "7/information",
			wantParams: url.Values{
				"includeNutrition": {"true"},
				"addWinePairing":   {"false"},
				"addTasteData":     {"true"},
			},
		},
		{name: "missing type", query: "ingredients=rice", wantErr: true},
		{name: "unknown type", query: "type=random", wantErr: true},
		{name: "find without ingredients", query: "type=findByIngredients", wantErr: true},
		{name: "bad ranking", query: "type=findByIngredients&ingredients=rice&ranking=3", wantErr: true},
		{name: "bad number", query: "type=findByIngredients&ingredients=rice&number=lots", wantErr: true},
		{name: "information without id", query: "type=information", wantErr: true},
		{name: "information with path in id", query: "type=information&recipeId=..%2Fsecret", wantErr: true},
		{name: "bad flag", query: "type=information&recipeId=7&addWinePairing=maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			path, params, err := ProxyTarget(q)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameters)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestForward(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    error
	}{
		{"2xx becomes 200", http.StatusAccepted, `{"ok":true}`, http.StatusOK, nil},
		{"upstream error status passes through", http.StatusPaymentRequired, `{"message":"quota"}`, http.StatusPaymentRequired, nil},
		{"non-JSON body", http.StatusOK, `<html>`, 0, apperror.ErrRecipeService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			status, body, err := c.Forward(context.Background(), "findByIngredients", url.Values{"ingredients": {"rice"}})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.JSONEq(t, tt.body, string(body))
		})
	}
}
