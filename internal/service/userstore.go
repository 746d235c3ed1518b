package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/foodsaver/internal/apperror"
	"github.com/sakif/foodsaver/internal/model"
	"github.com/sakif/foodsaver/internal/repository"
)

// Validation rules shared by registration, profile and password changes.
const (
	MinPasswordLength = 6
	DefaultUnit       = "item"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Messages that callers and tests match on.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidEmail       = "Please enter a valid email address"
	msgEmailTaken         = "An account with this email already exists"
)

// StoreFactory opens a UserStore for a client scope.
//
// A client scope is whatever identifies one browser: the HTTP layer keeps
// it in a signed cookie. Each scope has at most one session.
type StoreFactory struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   *slog.Logger
	opts     options
}

// NewStoreFactory wires the repositories a UserStore needs.
func NewStoreFactory(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	logger *slog.Logger,
	opts ...Option,
) *StoreFactory {
	return &StoreFactory{
		users:    users,
		sessions: sessions,
		logger:   logger,
		opts:     applyOptions(opts),
	}
}

// Open builds the UserStore for scope and restores its session.
//
// A session younger than model.SessionTTL whose user still exists makes
// the store authenticated. An expired or dangling session is deleted and
// the store starts logged out.
func (f *StoreFactory) Open(ctx context.Context, scope string) (*UserStore, error) {
	if scope == "" {
		return nil, fmt.Errorf("service/userstore: scope must not be empty")
	}

	s := &UserStore{
		users:    f.users,
		sessions: f.sessions,
		scope:    scope,
		logger:   f.logger,
		now:      f.opts.now,
	}

	sess, err := f.sessions.Get(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("service/userstore: reading session: %w", err)
	}
	if sess == nil {
		return s, nil
	}

	if sess.Expired(s.now()) {
		f.logger.Info("session expired", slog.String("scope", scope), slog.String("userID", sess.UserID))
		return s, s.clearSession(ctx)
	}

	if _, err := f.users.GetByID(ctx, sess.UserID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			f.logger.Warn("session points at unknown user", slog.String("userID", sess.UserID))
			return s, s.clearSession(ctx)
		}
		return nil, fmt.Errorf("service/userstore: restoring user %s: %w", sess.UserID, err)
	}

	s.currentUserID = sess.UserID
	return s, nil
}

// UserStore is the account state of one client scope.
//
// It remembers only the id of the logged-in user; every read goes back to
// the user repository, so there is never a stale second copy of the record.
type UserStore struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	scope    string
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	currentUserID string
}

// Scope returns the client scope this store was opened for.
func (s *UserStore) Scope() string {
	return s.scope
}

// CurrentUserID returns the logged-in user's id.
func (s *UserStore) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserID, s.currentUserID != ""
}

// IsAuthenticated reports whether a user is logged in.
func (s *UserStore) IsAuthenticated() bool {
	_, ok := s.CurrentUserID()
	return ok
}

// CurrentUser returns the logged-in user, or nil when nobody is.
func (s *UserStore) CurrentUser(ctx context.Context) (*model.User, error) {
	id, ok := s.CurrentUserID()
	if !ok {
		return nil, nil
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/userstore: loading current user: %w", err)
	}
	return u, nil
}

func (s *UserStore) clearSession(ctx context.Context) error {
	s.mu.Lock()
	s.currentUserID = ""
	s.mu.Unlock()
	if err := s.sessions.Delete(ctx, s.scope); err != nil {
		return fmt.Errorf("service/userstore: clearing session: %w", err)
	}
	return nil
}

// requireUser returns the current user id or an Unauthorized error whose
// message names the attempted action.
func (s *UserStore) requireUser(action string) (string, error) {
	id, ok := s.CurrentUserID()
	if !ok {
		return "", apperror.Unauthorized("User must be logged in to " + action)
	}
	return id, nil
}

// update runs fn against the current user's record.
func (s *UserStore) update(ctx context.Context, action string, fn func(u *model.User) error) (*model.User, error) {
	id, err := s.requireUser(action)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Update(ctx, id, fn)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("service/userstore: %s: %w", action, err)
	}
	return u, nil
}

// =========================================================================
// ACCOUNT
// =========================================================================

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. It does not log the new user in.
func (s *UserStore) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := normalizeEmail(in.Email)

	if first == "" || last == "" {
		return nil, apperror.ValidationFailed("name", "First name and last name are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperror.ValidationFailed("email", msgInvalidEmail)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "Password must be at least 6 characters long")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperror.ValidationFailed("confirmPassword", "Passwords do not match")
	}

	now := s.now()
	user := &model.User{
		ID:           xid.New().String(),
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Password:     in.Password,
		Pantry:       []model.PantryItem{},
		Cookbook:     []model.CookbookRecipe{},
		ShoppingList: []model.ShoppingListItem{},
		CreatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("service/userstore: registering: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// Login checks the credentials and starts a session for this scope.
// Unknown email and wrong password fail with the same message.
func (s *UserStore) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/userstore: login lookup: %w", err)
	}
	if u.Password != password {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	now := s.now()
	u, err = s.users.Update(ctx, u.ID, func(u *model.User) error {
		u.LastLogin = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/userstore: recording login: %w", err)
	}

	if err := s.sessions.Put(ctx, s.scope, model.Session{UserID: u.ID, LoginTime: now}); err != nil {
		return nil, fmt.Errorf("service/userstore: saving session: %w", err)
	}

	s.mu.Lock()
	s.currentUserID = u.ID
	s.mu.Unlock()

	s.logger.Info("user logged in", slog.String("userID", u.ID), slog.String("scope", s.scope))
	return u, nil
}

// Logout ends the scope's session. Logging out twice is fine.
func (s *UserStore) Logout(ctx context.Context) error {
	return s.clearSession(ctx)
}

// ProfileUpdate carries the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// UpdateProfile changes the current user's name and email.
func (s *UserStore) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*model.User, error) {
	return s.update(ctx, "update profile", func(u *model.User) error {
		if upd.FirstName != nil {
			v := strings.TrimSpace(*upd.FirstName)
			if v == "" {
				return apperror.ValidationFailed("firstName", "First name is required")
			}
			u.FirstName = v
		}
		if upd.LastName != nil {
			v := strings.TrimSpace(*upd.LastName)
			if v == "" {
				return apperror.ValidationFailed("lastName", "Last name is required")
			}
			u.LastName = v
		}
		if upd.Email != nil {
			v := normalizeEmail(*upd.Email)
			if !emailPattern.MatchString(v) {
				return apperror.ValidationFailed("email", msgInvalidEmail)
			}
			u.Email = v
		}
		return nil
	})
}

// ChangePassword replaces the current user's password after checking the
// old one.
func (s *UserStore) ChangePassword(ctx context.Context, current, next, confirm string) error {
	_, err := s.update(ctx, "change password", func(u *model.User) error {
		if u.Password != current {
			return apperror.Unauthorized("Current password is incorrect")
		}
		if len(next) < MinPasswordLength {
			return apperror.ValidationFailed("newPassword", "New password must be at least 6 characters long")
		}
		if next != confirm {
			return apperror.ValidationFailed("confirmPassword", "New passwords do not match")
		}
		u.Password = next
		return nil
	})
	return err
}

// =========================================================================
// PANTRY
// =========================================================================

// PantryInput is a new pantry item. Zero Quantity means 1 and an empty
// Unit means DefaultUnit.
type PantryInput struct {
	Name       string
	Quantity   float64
	Unit       string
	ExpiryDate *time.Time
}

// PantryUpdate edits a pantry item; nil fields are left alone.
type PantryUpdate struct {
	Name        *string
	Quantity    *float64
	Unit        *string
	ExpiryDate  *time.Time
	ClearExpiry bool
}

// GetPantry returns the current user's pantry, or nothing when logged out.
func (s *UserStore) GetPantry(ctx context.Context) ([]model.PantryItem, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil || u == nil {
		return []model.PantryItem{}, err
	}
	return nonNil(u.Pantry), nil
}

// Pantry sort orders.
const (
	PantrySortByName   = "name"
	PantrySortByExpiry = "expiry"
	PantrySortByAdded  = "added"
)

// FilterPantry searches the pantry by name, ignoring case.
//
// sortBy is PantrySortByName (also the default), PantrySortByExpiry
// (soonest first, undated items last) or PantrySortByAdded (newest first).
func (s *UserStore) FilterPantry(ctx context.Context, term, sortBy string) ([]model.PantryItem, error) {
	all, err := s.GetPantry(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.PantryItem, 0, len(all))
	for _, p := range all {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		out = append(out, p)
	}

	switch sortBy {
	case PantrySortByExpiry:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].ExpiryDate, out[j].ExpiryDate
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return a.Before(*b)
		})
	case PantrySortByAdded:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AddedDate.After(out[j].AddedDate)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out, nil
}

// Now is the store's clock, used to judge expiry dates.
func (s *UserStore) Now() time.Time {
	return s.now()
}

// AddToPantry appends an item and returns it with its generated id.
func (s *UserStore) AddToPantry(ctx context.Context, in PantryInput) (*model.PantryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Ingredient name is required")
	}
	if in.Quantity < 0 {
		return nil, apperror.ValidationFailed("quantity", "Quantity cannot be negative")
	}

	item := model.PantryItem{
		ID:         "pantry_" + xid.New().String(),
		Name:       name,
		Quantity:   in.Quantity,
		Unit:       strings.TrimSpace(in.Unit),
		ExpiryDate: in.ExpiryDate,
		AddedDate:  s.now(),
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Unit == "" {
		item.Unit = DefaultUnit
	}

	_, err := s.update(ctx, "add to pantry", func(u *model.User) error {
		u.Pantry = append(u.Pantry, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveFromPantry deletes the item with id. An unknown id changes nothing.
func (s *UserStore) RemoveFromPantry(ctx context.Context, id string) error {
	_, err := s.update(ctx, "remove from pantry", func(u *model.User) error {
		u.Pantry = removeByID(u.Pantry, id, func(p model.PantryItem) string { return p.ID })
		return nil
	})
	return err
}

// UpdatePantryItem edits one pantry item in place.
func (s *UserStore) UpdatePantryItem(ctx context.Context, id string, upd PantryUpdate) (*model.PantryItem, error) {
	var out model.PantryItem
	_, err := s.update(ctx, "update pantry", func(u *model.User) error {
		for i := range u.Pantry {
			if u.Pantry[i].ID != id {
				continue
			}
			p := &u.Pantry[i]
			if upd.Name != nil {
				v := strings.TrimSpace(*upd.Name)
				if v == "" {
					return apperror.ValidationFailed("name", "Ingredient name is required")
				}
				p.Name = v
			}
			if upd.Quantity != nil {
				if *upd.Quantity < 0 {
					return apperror.ValidationFailed("quantity", "Quantity cannot be negative")
				}
				p.Quantity = *upd.Quantity
			}
			if upd.Unit != nil {
				p.Unit = strings.TrimSpace(*upd.Unit)
				if p.Unit == "" {
					p.Unit = DefaultUnit
				}
			}
			switch {
			case upd.ClearExpiry:
				p.ExpiryDate = nil
			case upd.ExpiryDate != nil:
				p.ExpiryDate = upd.ExpiryDate
			}
			out = *p
			return nil
		}
		return apperror.NotFound("pantry item", id)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// =========================================================================
// COOKBOOK
// =========================================================================

// CookbookInput is a recipe being saved. Zero Servings means 1.
type CookbookInput struct {
	RecipeID       string
	Title          string
	Image          string
	Ingredients    []string
	Instructions   string
	Servings       int
	ReadyInMinutes int
	Tags           []string
}

// Cookbook sort orders.
const (
	SortByTitle = "title"
	SortByTime  = "time"
	SortByAdded = "added"
)

// GetCookbook returns the saved recipes, or nothing when logged out.
func (s *UserStore) GetCookbook(ctx context.Context) ([]model.CookbookRecipe, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil || u == nil {
		return []model.CookbookRecipe{}, err
	}
	return nonNil(u.Cookbook), nil
}

// AddToCookbook saves a recipe and returns the stored copy.
func (s *UserStore) AddToCookbook(ctx context.Context, in CookbookInput) (*model.CookbookRecipe, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "Recipe title is required")
	}

	rec := model.CookbookRecipe{
		ID:             "recipe_" + xid.New().String(),
		RecipeID:       in.RecipeID,
		Title:          title,
		Image:          in.Image,
		Ingredients:    nonNil(in.Ingredients),
		Instructions:   in.Instructions,
		Servings:       in.Servings,
		ReadyInMinutes: in.ReadyInMinutes,
		AddedDate:      s.now(),
		Tags:           nonNil(in.Tags),
	}
	if rec.Servings <= 0 {
		rec.Servings = 1
	}
	if rec.ReadyInMinutes < 0 {
		rec.ReadyInMinutes = 0
	}

	_, err := s.update(ctx, "add to cookbook", func(u *model.User) error {
		u.Cookbook = append(u.Cookbook, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RemoveFromCookbook deletes the saved recipe with id. Unknown ids are
// ignored.
func (s *UserStore) RemoveFromCookbook(ctx context.Context, id string) error {
	_, err := s.update(ctx, "remove from cookbook", func(u *model.User) error {
		u.Cookbook = removeByID(u.Cookbook, id, func(r model.CookbookRecipe) string { return r.ID })
		return nil
	})
	return err
}

// UpdateCookbookNotes replaces the notes of one saved recipe.
func (s *UserStore) UpdateCookbookNotes(ctx context.Context, id, notes string) (*model.CookbookRecipe, error) {
	var out model.CookbookRecipe
	_, err := s.update(ctx, "edit cookbook notes", func(u *model.User) error {
		for i := range u.Cookbook {
			if u.Cookbook[i].ID == id {
				u.Cookbook[i].Notes = strings.TrimSpace(notes)
				out = u.Cookbook[i]
				return nil
			}
		}
		return apperror.NotFound("cookbook recipe", id)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FilterCookbook searches the cookbook.
//
// term matches title or any tag, ignoring case. category, when not empty
// or "all", must match a tag. sortBy is SortByTitle, SortByTime (recipes
// without a time go last) or SortByAdded (newest first); anything else
// keeps insertion order.
func (s *UserStore) FilterCookbook(ctx context.Context, term, category, sortBy string) ([]model.CookbookRecipe, error) {
	all, err := s.GetCookbook(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(strings.TrimSpace(term))
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "all" {
		category = ""
	}

	out := make([]model.CookbookRecipe, 0, len(all))
	for _, r := range all {
		tags := strings.ToLower(strings.Join(r.Tags, " "))
		if term != "" && !strings.Contains(strings.ToLower(r.Title), term) && !strings.Contains(tags, term) {
			continue
		}
		if category != "" && !strings.Contains(tags, category) {
			continue
		}
		out = append(out, r)
	}

	switch sortBy {
	case SortByTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	case SortByTime:
		sort.SliceStable(out, func(i, j int) bool {
			return sortableMinutes(out[i]) < sortableMinutes(out[j])
		})
	case SortByAdded:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AddedDate.After(out[j].AddedDate)
		})
	}
	return out, nil
}

func sortableMinutes(r model.CookbookRecipe) int {
	if r.ReadyInMinutes <= 0 {
		return 999
	}
	return r.ReadyInMinutes
}

// =========================================================================
// SHOPPING LIST
// =========================================================================

// GetShoppingList returns the saved list, or nothing when logged out.
func (s *UserStore) GetShoppingList(ctx context.Context) ([]model.ShoppingListItem, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil || u == nil {
		return []model.ShoppingListItem{}, err
	}
	return nonNil(u.ShoppingList), nil
}

// SetShoppingList replaces the whole list. Items without a name are
// dropped and negative amounts become 0. Ids stay unique within the list:
// a missing or repeated id is replaced with a fresh one.
func (s *UserStore) SetShoppingList(ctx context.Context, items []model.ShoppingListItem) error {
	clean := make([]model.ShoppingListItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		if it.ID == "" || seen[it.ID] {
			it.ID = "manual-" + xid.New().String()
		}
		seen[it.ID] = true
		if it.Amount < 0 {
			it.Amount = 0
		}
		clean = append(clean, it)
	}

	_, err := s.update(ctx, "save shopping list", func(u *model.User) error {
		u.ShoppingList = clean
		return nil
	})
	return err
}

// AddShoppingItem puts a hand-written item at the top of the list.
func (s *UserStore) AddShoppingItem(ctx context.Context, name string, amount float64, unit string) (*model.ShoppingListItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Please enter an ingredient name.")
	}
	if amount < 0 {
		amount = 0
	}
	item := model.ShoppingListItem{
		ID:     "manual-" + xid.New().String(),
		Name:   name,
		Amount: amount,
		Unit:   strings.TrimSpace(unit),
	}

	_, err := s.update(ctx, "edit shopping list", func(u *model.User) error {
		u.ShoppingList = append([]model.ShoppingListItem{item}, u.ShoppingList...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveShoppingItem deletes one item. Unknown ids are ignored.
func (s *UserStore) RemoveShoppingItem(ctx context.Context, id string) error {
	_, err := s.update(ctx, "edit shopping list", func(u *model.User) error {
		u.ShoppingList = removeByID(u.ShoppingList, id, func(it model.ShoppingListItem) string { return it.ID })
		return nil
	})
	return err
}

// MoveShoppingItemsToPantry moves the selected items into the pantry and
// off the list, in one write.
//
// An item merges into a pantry entry with the same name (ignoring case)
// and the same unit; otherwise it becomes a new entry. An empty unit is
// DefaultUnit on both sides. An amount of 0 counts as 1. It returns how
// many items moved.
func (s *UserStore) MoveShoppingItemsToPantry(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, apperror.ValidationFailed("ids", "Select at least one item to add to your pantry.")
	}
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	moved := 0
	now := s.now()
	_, err := s.update(ctx, "add to pantry", func(u *model.User) error {
		remaining := make([]model.ShoppingListItem, 0, len(u.ShoppingList))
		for _, it := range u.ShoppingList {
			if !selected[it.ID] {
				remaining = append(remaining, it)
				continue
			}
			moved++

			qty := it.Amount
			if qty <= 0 {
				qty = 1
			}
			unit := unitOrDefault(it.Unit)
			merged := false
			for i := range u.Pantry {
				p := &u.Pantry[i]
				if strings.EqualFold(p.Name, it.Name) && unitOrDefault(p.Unit) == unit {
					p.Quantity += qty
					p.AddedDate = now
					merged = true
					break
				}
			}
			if !merged {
				u.Pantry = append(u.Pantry, model.PantryItem{
					ID:        "pantry_" + xid.New().String(),
					Name:      it.Name,
					Quantity:  qty,
					Unit:      unit,
					AddedDate: now,
				})
			}
		}
		u.ShoppingList = remaining
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func unitOrDefault(unit string) string {
	if unit = strings.TrimSpace(unit); unit == "" {
		return DefaultUnit
	}
	return unit
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if key(it) != id {
			out = append(out, it)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
