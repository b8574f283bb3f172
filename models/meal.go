package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MealTypeOther is used when a meal is logged without a type
const MealTypeOther = "other"

// MealItem is a single food in a logged meal
type MealItem struct {
	Name     string          `json:"name"`
	Calories decimal.Decimal `json:"calories"`
}

// MealEntry represents a logged meal
type MealEntry struct {
	ID        string     `db:"id" json:"id"`
	AccountID string     `db:"account_id" json:"account_id"`
	EatenAt   time.Time  `db:"eaten_at" json:"eaten_at"`
	MealType  string     `db:"meal_type" json:"meal_type"`
	Items     []MealItem `db:"items" json:"items"`
	Notes     string     `db:"notes" json:"notes"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// TotalCalories sums the calories of all items
func (m *MealEntry) TotalCalories() decimal.Decimal {
	total := decimal.Zero
	for _, item := range m.Items {
		total = total.Add(item.Calories)
	}
	return total
}

// Timestamp returns when the meal was eaten
func (m *MealEntry) Timestamp() time.Time {
	return m.EatenAt
}
