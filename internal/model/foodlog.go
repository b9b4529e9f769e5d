package model

import "time"

// FoodLogEntry is one logged item. Nutrition fields stay nil until the
// estimator has produced values; nil means "not estimated", not zero.
type FoodLogEntry struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"household_id"`
	UserID      int64      `json:"user_id"`
	FoodName    string     `json:"food_name"`
	PortionSize string     `json:"portion_size"`
	Calories    *float64   `json:"calories"`
	Protein     *float64   `json:"protein"`
	Carbs       *float64   `json:"carbs"`
	Fat         *float64   `json:"fat"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FoodLogRow is an entry joined with the logging user's name for display.
type FoodLogRow struct {
	FoodLogEntry
	UserName string `json:"user_name"`
}
