// Package repository declares the persistence contracts the services depend
// on. Implementations live in subpackages; services only see interfaces.
package repository

import (
	"context"
	"errors"

	"github.com/sakif/foodsaver/internal/model"
)

// ErrEmailTaken is returned when a create or update would give two users
// the same (case-insensitive) email.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository owns the collection of all registered users.
type UserRepository interface {
	// GetByID returns apperror.ErrNotFound when no user has id.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail matches case-insensitively; apperror.ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Create appends user. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, user *model.User) error
	// Update loads the user, applies fn and saves the result. If fn returns
	// an error nothing is written. Returns ErrEmailTaken if fn changed the
	// email to one another user holds.
	Update(ctx context.Context, id string, fn func(u *model.User) error) (*model.User, error)
}

// SessionRepository stores the single active session of each client scope.
type SessionRepository interface {
	// Get returns nil, nil when the scope has no session.
	Get(ctx context.Context, scope string) (*model.Session, error)
	Put(ctx context.Context, scope string, s model.Session) error
	Delete(ctx context.Context, scope string) error
}

// MealPlanRepository stores each user's plans, keyed by week.
type MealPlanRepository interface {
	// GetWeek returns an empty plan when nothing was saved for the week.
	GetWeek(ctx context.Context, userID, weekKey string) (model.MealPlan, error)
	// UpdateWeek applies fn to the week's plan and saves it. If fn returns
	// an error nothing is written.
	UpdateWeek(ctx context.Context, userID, weekKey string, fn func(p model.MealPlan) error) error
}
