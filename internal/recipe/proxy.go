package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/foodsaver/internal/apperror"
)

// Proxy request types.
const (
	TypeFindByIngredients = "findByIngredients"
	TypeInformation       = "information"
)

// ErrInvalidParameters is returned by ProxyTarget for any query it cannot
// turn into an upstream call.
var ErrInvalidParameters = errors.New("Invalid parameters")

// ProxyTarget maps the proxy's query string onto an upstream path and
// query. Defaults: ranking 1, number 20, and false for every detail flag.
func ProxyTarget(q url.Values) (string, url.Values, error) {
	params := url.Values{}

	switch q.Get("type") {
	case TypeFindByIngredients:
		ingredients := strings.TrimSpace(q.Get("ingredients"))
		if ingredients == "" {
			return "", nil, ErrInvalidParameters
		}
		ranking := defaultParam(q, "ranking", "1")
		if ranking != "1" && ranking != "2" {
			return "", nil, ErrInvalidParameters
		}
		number := defaultParam(q, "number", strconv.Itoa(DefaultLimit))
		if n, err := strconv.Atoi(number); err != nil || n < 1 || n > MaxLimit {
			return "", nil, ErrInvalidParameters
		}
		params.Set("ingredients", ingredients)
		params.Set("ranking", ranking)
		params.Set("number", number)
		return "findByIngredients", params, nil

	case TypeInformation:
		id := q.Get("recipeId")
		if !validRecipeID(id) {
			return "", nil, ErrInvalidParameters
		}
		for _, flag := range []string{"includeNutrition", "addWinePairing", "addTasteData"} {
			v, err := strconv.ParseBool(defaultParam(q, flag, "false"))
			if err != nil {
				return "", nil, ErrInvalidParameters
			}
			params.Set(flag, strconv.FormatBool(v))
		}
		return id + "/information", params, nil
	}

	return "", nil, ErrInvalidParameters
}

func defaultParam(q url.Values, key, def string) string {
	if v := strings.TrimSpace(q.Get(key)); v != "" {
		return v
	}
	return def
}

// Forward performs a proxied call and returns what the browser should
// see: 200 for any 2xx, the upstream status otherwise, and the upstream
// JSON body unchanged. A body that is not JSON is a recipe service error.
func (c *Client) Forward(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	status, body, err := c.do(ctx, path, params)
	if err != nil {
		return 0, nil, err
	}
	if !json.Valid(body) {
		return 0, nil, apperror.RecipeService("recipe service sent an unreadable response",
			errors.New("recipe: upstream body is not JSON"))
	}
	if status >= 200 && status <= 299 {
		status = 200
	}
	return status, body, nil
}
