// Package service holds the business rules of FoodSaver.
//
//	Handler (HTTP) → Service (rules) → Repository (storage.Store)
//
// UserStore is opened once per client scope and owns everything about the
// logged-in user. MealPlanner sits on top of it and the recipe API.
// Neither knows about HTTP; both return apperror values that handlers map
// to status codes.
package service

import (
	"context"
	"time"

	"github.com/sakif/foodsaver/internal/model"
)

// RecipeService is the third-party recipe API as the services see it.
// Failures of any kind come back as apperror.ErrRecipeService.
type RecipeService interface {
	FindByIngredients(ctx context.Context, ingredients []string, ranking model.Ranking, limit int) ([]model.RecipeSummary, error)
	GetRecipeDetails(ctx context.Context, id string, opts model.DetailOptions) (*model.RecipeDetail, error)
}

// Option configures a StoreFactory or MealPlanner.
type Option func(*options)

type options struct {
	now          func() time.Time
	fetchTimeout time.Duration
	concurrency  int
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		fetchTimeout: 10 * time.Second,
		concurrency:  4,
	}
}

// WithClock replaces time.Now. Tests use it to move through session expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFetchTimeout bounds each recipe detail request made while building a
// shopping list.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithFetchConcurrency caps how many recipe detail requests run at once.
func WithFetchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
