// Package recipe talks to the Spoonacular recipe API.
//
// The API key never leaves the server: typed lookups go through Client's
// methods, and the browser-facing proxy goes through Forward. Both share
// one HTTP client, timeout and rate limiter.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
)

const (
	DefaultBaseURL = "https://api.spoonacular.com/recipes/"
	DefaultLimit   = 20
	MaxLimit       = 100

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 4 << 20
)

// Config holds everything needed to reach the API.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64 // 0 disables client-side limiting
	Burst      int
}

// Client is a Spoonacular client. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Client. An empty BaseURL means DefaultBaseURL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("recipe: parsing base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// do sends a GET to path under the base URL and returns the raw response
// status and body. Only transport failures are errors here.
func (c *Client) do(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, apperror.RecipeService("recipe service busy", err)
	}

	ref := &url.URL{Path: path, RawQuery: params.Encode()}
	target := c.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, nil, apperror.RecipeService("recipe service request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, apperror.RecipeService("recipe service unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, apperror.RecipeService("recipe service unavailable", err)
	}

	c.logger.Debug("recipe api call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}

// getJSON is do plus the typed error policy: non-2xx and undecodable
// bodies are failures.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	status, body, err := c.do(ctx, path, params)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return apperror.RecipeService(
			fmt.Sprintf("recipe service returned status %d", status),
			fmt.Errorf("recipe: %s: %s", path, truncate(body, 200)),
		)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return apperror.RecipeService("recipe service sent an unreadable response", err)
	}
	return nil
}

// FindByIngredients searches for recipes using the given ingredients.
// A zero ranking means MaximizeUsed; a limit outside 1..MaxLimit means
// DefaultLimit.
func (c *Client) FindByIngredients(ctx context.Context, ingredients []string, ranking model.Ranking, limit int) ([]model.RecipeSummary, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			cleaned = append(cleaned, ing)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperror.ValidationFailed("ingredients", "Please enter at least one ingredient")
	}
	if ranking != model.MinimizeMissing {
		ranking = model.MaximizeUsed
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	params := url.Values{}
	params.Set("ingredients", strings.Join(cleaned, ","))
	params.Set("ranking", strconv.Itoa(int(ranking)))
	params.Set("number", strconv.Itoa(limit))

	var out []model.RecipeSummary
	if err := c.getJSON(ctx, "findByIngredients", params, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.RecipeSummary{}
	}
	return out, nil
}

// information mirrors the upstream detail payload. Only the fields we
// use are decoded.
type information struct {
	ID                  int                      `json:"id"`
	Title               string                   `json:"title"`
	Image               string                   `json:"image"`
	Servings            int                      `json:"servings"`
	ReadyInMinutes      int                      `json:"readyInMinutes"`
	Instructions        *string                  `json:"instructions"`
	ExtendedIngredients []model.RecipeIngredient `json:"extendedIngredients"`
}

// GetRecipeDetails fetches the full record for one recipe.
func (c *Client) GetRecipeDetails(ctx context.Context, id string, opts model.DetailOptions) (*model.RecipeDetail, error) {
	if !validRecipeID(id) {
		return nil, apperror.ValidationFailed("id", fmt.Sprintf("invalid recipe id %q", id))
	}

	params := url.Values{}
	params.Set("includeNutrition", strconv.FormatBool(opts.IncludeNutrition))
	params.Set("addWinePairing", strconv.FormatBool(opts.AddWinePairing))
	params.Set("addTasteData", strconv.FormatBool(opts.AddTasteData))

	var info information
	if err := c.getJSON(ctx, id+"/information", params, &info); err != nil {
		return nil, err
	}
	if info.ID == 0 {
		return nil, apperror.RecipeService("recipe service sent an unreadable response",
			errors.New("recipe: information payload has no id"))
	}

	d := &model.RecipeDetail{
		ID:             info.ID,
		Title:          info.Title,
		Image:          info.Image,
		Servings:       info.Servings,
		ReadyInMinutes: info.ReadyInMinutes,
		Ingredients:    info.ExtendedIngredients,
	}
	if info.Instructions != nil {
		d.Instructions = *info.Instructions
	}
	if d.Ingredients == nil {
		d.Ingredients = []model.RecipeIngredient{}
	}
	return d, nil
}

func validRecipeID(id string) bool {
	n, err := strconv.Atoi(id)
	return err == nil && n > 0
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
