// Package kv implements the repository interfaces on a storage.Store under
// these logical keys:
//
//	foodSaverUsers          → JSON array of every user
//	currentSession:<scope>  → the scope's session record
//	mealPlans_<userID>      → map of week key → meal plan
//
// The store has no transactions, so every read-modify-write goes through
// one mutex. Within a process that makes each mutation all-or-nothing;
// across processes sharing a store the last write wins.
package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/repository"
	"github.com/sakif/foodsaver/internal/storage"
)

const (
	usersKey         = "foodSaverUsers"
	sessionKeyPrefix = "currentSession:"
	mealPlanPrefix   = "mealPlans_"
)

var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.SessionRepository  = (*Sessions)(nil)
	_ repository.MealPlanRepository = (*MealPlans)(nil)
)

// Repository is the user collection. Sessions and MealPlans share its
// store and lock.
type Repository struct {
	store storage.Store
	mu    sync.Mutex
}

// New wraps store.
func New(store storage.Store) *Repository {
	return &Repository{store: store}
}

// Sessions returns the session repository over the same store.
func (r *Repository) Sessions() *Sessions {
	return &Sessions{repo: r}
}

// MealPlans returns the meal plan repository over the same store.
func (r *Repository) MealPlans() *MealPlans {
	return &MealPlans{repo: r}
}

// loadUsers must be called with r.mu held.
func (r *Repository) loadUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if _, err := storage.GetJSON(ctx, r.store, usersKey, &users); err != nil {
		return nil, fmt.Errorf("kv: loading users: %w", err)
	}
	return users, nil
}

// saveUsers must be called with r.mu held.
func (r *Repository) saveUsers(ctx context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	if err := storage.SetJSON(ctx, r.store, usersKey, users); err != nil {
		return fmt.Errorf("kv: saving users: %w", err)
	}
	return nil
}

func indexByID(users []model.User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func emailTaken(users []model.User, email, exceptID string) bool {
	for i := range users {
		if users[i].ID != exceptID && strings.EqualFold(users[i].Email, email) {
			return true
		}
	}
	return false
}

// GetByID returns a copy of the user with id.
func (r *Repository) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByID(users, id)
	if i < 0 {
		return nil, apperror.NotFound("user", id)
	}
	u := users[i]
	return &u, nil
}

// GetByEmail returns a copy of the user whose email matches, ignoring case.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			u := users[i]
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

// Create appends user to the collection.
func (r *Repository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers(ctx)
	if err != nil {
		return err
	}
	if emailTaken(users, user.Email, "") {
		return repository.ErrEmailTaken
	}
	if indexByID(users, user.ID) >= 0 {
		return fmt.Errorf("kv: user id %s already exists", user.ID)
	}

	return r.saveUsers(ctx, append(users, *user))
}

// Update applies fn to a copy of the stored user and writes it back.
func (r *Repository) Update(ctx context.Context, id string, fn func(u *model.User) error) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByID(users, id)
	if i < 0 {
		return nil, apperror.NotFound("user", id)
	}

	updated := users[i]
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	if emailTaken(users, updated.Email, id) {
		return nil, repository.ErrEmailTaken
	}

	users[i] = updated
	if err := r.saveUsers(ctx, users); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Sessions stores one session record per client scope.
type Sessions struct {
	repo *Repository
}

func sessionKey(scope string) string {
	return sessionKeyPrefix + scope
}

// Get returns the scope's session or nil.
func (s *Sessions) Get(ctx context.Context, scope string) (*model.Session, error) {
	var sess model.Session
	found, err := storage.GetJSON(ctx, s.repo.store, sessionKey(scope), &sess)
	if err != nil {
		return nil, fmt.Errorf("kv: loading session: %w", err)
	}
	if !found || sess.UserID == "" || sess.LoginTime.IsZero() {
		return nil, nil
	}
	return &sess, nil
}

// Put replaces the scope's session.
func (s *Sessions) Put(ctx context.Context, scope string, sess model.Session) error {
	if err := storage.SetJSON(ctx, s.repo.store, sessionKey(scope), sess); err != nil {
		return fmt.Errorf("kv: saving session: %w", err)
	}
	return nil
}

// Delete clears the scope's session.
func (s *Sessions) Delete(ctx context.Context, scope string) error {
	if err := s.repo.store.Delete(ctx, sessionKey(scope)); err != nil {
		return fmt.Errorf("kv: clearing session: %w", err)
	}
	return nil
}

// MealPlans stores every week of a user's plans under one key.
type MealPlans struct {
	repo *Repository
}

func mealPlanKey(userID string) string {
	return mealPlanPrefix + userID
}

func (m *MealPlans) load(ctx context.Context, userID string) (map[string]model.MealPlan, error) {
	plans := map[string]model.MealPlan{}
	if _, err := storage.GetJSON(ctx, m.repo.store, mealPlanKey(userID), &plans); err != nil {
		return nil, fmt.Errorf("kv: loading meal plans: %w", err)
	}
	return plans, nil
}

// GetWeek returns a copy of the plan for weekKey.
func (m *MealPlans) GetWeek(ctx context.Context, userID, weekKey string) (model.MealPlan, error) {
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()

	plans, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	week := model.MealPlan{}
	for k, v := range plans[weekKey] {
		week[k] = v
	}
	return week, nil
}

// UpdateWeek applies fn to the week's plan and saves every week back.
// An emptied week is dropped from the document.
func (m *MealPlans) UpdateWeek(ctx context.Context, userID, weekKey string, fn func(p model.MealPlan) error) error {
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()

	plans, err := m.load(ctx, userID)
	if err != nil {
		return err
	}
	week := model.MealPlan{}
	for k, v := range plans[weekKey] {
		week[k] = v
	}
	if err := fn(week); err != nil {
		return err
	}

	if len(week) == 0 {
		delete(plans, weekKey)
	} else {
		plans[weekKey] = week
	}
	if err := storage.SetJSON(ctx, m.repo.store, mealPlanKey(userID), plans); err != nil {
		return fmt.Errorf("kv: saving meal plans: %w", err)
	}
	return nil
}
