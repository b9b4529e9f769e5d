package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dchurch/fridge/internal/model"
)

type FoodLogStore struct {
	db *sql.DB
}

func NewFoodLogStore(db *sql.DB) *FoodLogStore {
	return &FoodLogStore{db: db}
}

func scanFoodLogEntry(scanner interface{ Scan(...any) error }) (*model.FoodLogEntry, error) {
	var e model.FoodLogEntry
	var calories, protein, carbs, fat sql.NullFloat64

	err := scanner.Scan(
		&e.ID, &e.HouseholdID, &e.UserID, &e.FoodName, &e.PortionSize,
		&calories, &protein, &carbs, &fat, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if calories.Valid {
		e.Calories = &calories.Float64
	}
	if protein.Valid {
		e.Protein = &protein.Float64
	}
	if carbs.Valid {
		e.Carbs = &carbs.Float64
	}
	if fat.Valid {
		e.Fat = &fat.Float64
	}
	return &e, nil
}

const foodLogCols = `id, household_id, user_id, food_name, portion_size, calories, protein, carbs, fat, created_at`

// ListFilter narrows List results. Nil fields mean no constraint.
type ListFilter struct {
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// Create inserts an entry with empty nutrition fields. Estimation results
// are attached later via UpdateNutrition, if at all.
func (s *FoodLogStore) Create(householdID, userID int64, foodName, portionSize string) (*model.FoodLogEntry, error) {
	result, err := s.db.Exec(
		`INSERT INTO food_log_entries (household_id, user_id, food_name, portion_size) VALUES (?, ?, ?, ?)`,
		householdID, userID, foodName, portionSize,
	)
	if err != nil {
		return nil, fmt.Errorf("insert food log entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FoodLogStore) GetByID(id int64) (*model.FoodLogEntry, error) {
	row := s.db.QueryRow(`SELECT `+foodLogCols+` FROM food_log_entries WHERE id = ?`, id)
	e, err := scanFoodLogEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get food log entry: %w", err)
	}
	return e, nil
}

// UpdateNutrition fills in the estimated nutrition fields for an entry.
func (s *FoodLogStore) UpdateNutrition(id int64, calories, protein, carbs, fat float64) (*model.FoodLogEntry, error) {
	_, err := s.db.Exec(
		`UPDATE food_log_entries SET calories = ?, protein = ?, carbs = ?, fat = ? WHERE id = ?`,
		calories, protein, carbs, fat, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update nutrition: %w", err)
	}
	return s.GetByID(id)
}

// List returns household entries newest first, joined with user names,
// optionally filtered by user and date range.
func (s *FoodLogStore) List(householdID int64, filter ListFilter) ([]model.FoodLogRow, error) {
	query := `SELECT e.id, e.household_id, e.user_id, e.food_name, e.portion_size,
	                 e.calories, e.protein, e.carbs, e.fat, e.created_at, u.name
	          FROM food_log_entries e
	          JOIN users u ON u.id = e.user_id
	          WHERE e.household_id = ?`
	args := []any{householdID}

	if filter.UserID != nil {
		query += ` AND e.user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.From != nil {
		query += ` AND e.created_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += ` AND e.created_at < ?`
		args = append(args, filter.To.UTC())
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list food log entries: %w", err)
	}
	defer rows.Close()

	var entries []model.FoodLogRow
	for rows.Next() {
		var r model.FoodLogRow
		var calories, protein, carbs, fat sql.NullFloat64
		err := rows.Scan(
			&r.ID, &r.HouseholdID, &r.UserID, &r.FoodName, &r.PortionSize,
			&calories, &protein, &carbs, &fat, &r.CreatedAt, &r.UserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan food log entry: %w", err)
		}
		if calories.Valid {
			r.Calories = &calories.Float64
		}
		if protein.Valid {
			r.Protein = &protein.Float64
		}
		if carbs.Valid {
			r.Carbs = &carbs.Float64
		}
		if fat.Valid {
			r.Fat = &fat.Float64
		}
		entries = append(entries, r)
	}
	return entries, rows.Err()
}

// DailyCalories sums the estimated calories a user logged in the household
// since the start of the given day (UTC). Entries without an estimate
// contribute nothing.
func (s *FoodLogStore) DailyCalories(householdID, userID int64, day time.Time) (float64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(calories) FROM food_log_entries
		 WHERE household_id = ? AND user_id = ? AND created_at >= ? AND created_at < ?`,
		householdID, userID, start, start.Add(24*time.Hour),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("daily calories: %w", err)
	}
	return total.Float64, nil
}
