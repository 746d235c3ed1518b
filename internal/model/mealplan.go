package model

import (
	"fmt"
	"time"
)

// Days of the planner grid, in display order.
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Meals of each day, in display order.
var Meals = []string{"breakfast", "lunch", "dinner"}

const (
	EntryRecipe = "recipe"
	EntryCustom = "custom"
)

// MealEntry fills one slot. Recipe entries reference an upstream recipe by
// ID; custom entries are free text.
type MealEntry struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Image          string `json:"image,omitempty"`
	ReadyInMinutes int    `json:"readyInMinutes,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Type           string `json:"type"`
}

// MealPlan maps "<day>-<meal>" to an entry. A missing key is an empty slot.
type MealPlan map[string]MealEntry

// SlotKey builds the plan key for a day and meal.
func SlotKey(day, meal string) string {
	return day + "-" + meal
}

// SlotKeys returns all 21 keys, Monday breakfast first.
func SlotKeys() []string {
	keys := make([]string, 0, len(Days)*len(Meals))
	for _, d := range Days {
		for _, m := range Meals {
			keys = append(keys, SlotKey(d, m))
		}
	}
	return keys
}

// ValidDay reports whether day is one of Days.
func ValidDay(day string) bool {
	for _, d := range Days {
		if d == day {
			return true
		}
	}
	return false
}

// ValidMeal reports whether meal is one of Meals.
func ValidMeal(meal string) bool {
	for _, m := range Meals {
		if m == meal {
			return true
		}
	}
	return false
}

// WeekKeyFor returns the key of the week containing t: the date of that
// week's Monday in YYYY-MM-DD form, in t's location.
func WeekKeyFor(t time.Time) string {
	// time.Weekday counts from Sunday = 0
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format(time.DateOnly)
}

// ParseWeekKey validates a week key and returns its Monday.
func ParseWeekKey(key string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("week key %q is not a YYYY-MM-DD date", key)
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("week key %q is not a Monday", key)
	}
	return t, nil
}
