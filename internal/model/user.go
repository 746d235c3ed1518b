// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account together with everything it owns.
//
// The pantry, cookbook and shopping list are embedded rather than stored
// separately: the whole user is persisted as one JSON record.
//
// Password is stored as entered. It is never serialized in API responses
// (see PublicUser).
type User struct {
	ID           string             `json:"id"`
	FirstName    string             `json:"firstName"`
	LastName     string             `json:"lastName"`
	Email        string             `json:"email"` // stored lower-cased
	Password     string             `json:"password"`
	Pantry       []PantryItem       `json:"pantry"`
	Cookbook     []CookbookRecipe   `json:"cookbook"`
	ShoppingList []ShoppingListItem `json:"shoppingList"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastLogin    time.Time          `json:"lastLogin"`
}

// PublicUser is the API view of a User, without the password.
type PublicUser struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
}

// Public strips the password and owned collections.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// Session marks which user is logged in for one client scope.
// It is valid for SessionTTL after LoginTime; expiry is checked lazily.
type Session struct {
	UserID    string    `json:"userId"`
	LoginTime time.Time `json:"loginTime"`
}

// SessionTTL is how long a login lasts.
const SessionTTL = 24 * time.Hour

// Expired reports whether the session is past its lifetime at now.
func (s Session) Expired(now time.Time) bool {
	return now.Sub(s.LoginTime) >= SessionTTL
}

// PantryItem is one ingredient the user has on hand.
type PantryItem struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Quantity   float64    `json:"quantity"`
	Unit       string     `json:"unit"`
	ExpiryDate *time.Time `json:"expiryDate"`
	AddedDate  time.Time  `json:"addedDate"`
}

// ExpiringSoonWindow is how far ahead an expiry date counts as soon.
const ExpiringSoonWindow = 3 * 24 * time.Hour

// ExpiringSoon reports whether the item expires between now and
// ExpiringSoonWindow from now, both ends included.
func (p PantryItem) ExpiringSoon(now time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	return !p.ExpiryDate.Before(now) && !p.ExpiryDate.After(now.Add(ExpiringSoonWindow))
}

// Expired reports whether the expiry date has passed at now.
func (p PantryItem) Expired(now time.Time) bool {
	return p.ExpiryDate != nil && p.ExpiryDate.Before(now)
}

// CookbookRecipe is a recipe the user saved, copied out of the recipe API
// so it survives the upstream going away.
type CookbookRecipe struct {
	ID             string    `json:"id"`
	RecipeID       string    `json:"recipeId"` // upstream recipe identifier
	Title          string    `json:"title"`
	Image          string    `json:"image,omitempty"`
	Ingredients    []string  `json:"ingredients"`
	Instructions   string    `json:"instructions"`
	Servings       int       `json:"servings"`
	ReadyInMinutes int       `json:"readyInMinutes"`
	AddedDate      time.Time `json:"addedDate"`
	Tags           []string  `json:"tags"`
	Notes          string    `json:"notes"`
}

// ShoppingListItem is one line of the shopping list. Items are either
// generated from a meal plan or added by hand.
type ShoppingListItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}
