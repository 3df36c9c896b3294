package attendance

import (
	"time"

	"mess/internal/meal"
)

// Record is one student's attendance row for a calendar day. At most one
// record exists per (StudentID, Day); the store's upsert enforces that.
// ID is nil until the row has been persisted.
type Record struct {
	ID        *string   `json:"id"`
	StudentID string    `json:"student_id"`
	Day       time.Time `json:"day"`
	Breakfast bool      `json:"breakfast"`
	Lunch     bool      `json:"lunch"`
	Dinner    bool      `json:"dinner"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Marked reports whether the given meal flag is set on the record.
func (r Record) Marked(m meal.Meal) bool {
	switch m {
	case meal.Breakfast:
		return r.Breakfast
	case meal.Lunch:
		return r.Lunch
	case meal.Dinner:
		return r.Dinner
	}
	return false
}

// AnyMarked reports whether any meal flag is set.
func (r Record) AnyMarked() bool { return r.Breakfast || r.Lunch || r.Dinner }

// Marks is a partial update: only meals present in the map are touched,
// absent meals keep their stored value.
type Marks map[meal.Meal]bool

// RequestedTrue returns the meals the marks would turn on.
func (m Marks) RequestedTrue() []meal.Meal {
	var out []meal.Meal
	for _, ml := range meal.Order {
		if v, ok := m[ml]; ok && v {
			out = append(out, ml)
		}
	}
	return out
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
