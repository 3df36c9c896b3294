// Package digest aggregates raw attendance rows into time-windowed,
// plan-filtered summaries and daily totals for the notification engine.
package digest

import (
	"context"
	"math"
	"time"

	"mess/internal/apperr"
	"mess/internal/attendance"
	"mess/internal/meal"
	"mess/internal/roster"
)

// StudentRef names a student in a meal's activity list.
type StudentRef struct {
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
}

// MealActivity is one meal's share of a window. Count is always > 0;
// meals nobody marked are omitted from the summary.
type MealActivity struct {
	Meal     meal.Meal    `json:"meal"`
	Count    int          `json:"count"`
	Students []StudentRef `json:"students"`
}

// WindowSummary is the aggregation result for [Start, End].
type WindowSummary struct {
	Start time.Time      `json:"start"`
	End   time.Time      `json:"end"`
	Meals []MealActivity `json:"meals"`
}

// Stats is today's headline attendance ratio.
type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Percentage int `json:"percentage"`
}

// Service computes window summaries and daily stats from the store and
// directory boundaries.
type Service struct {
	store    attendance.Store
	dir      roster.Directory
	resolver *meal.Resolver
	now      func() time.Time
}

// NewService creates a digest service.
func NewService(store attendance.Store, dir roster.Directory, resolver *meal.Resolver) *Service {
	if resolver == nil {
		resolver = meal.NewResolver()
	}
	return &Service{store: store, dir: dir, resolver: resolver, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Aggregate groups the rows updated within [start, end] by meal, filtered
// through plan eligibility. Lookups run against the calendar day of end;
// a window crossing midnight only sees the later day's rows. Rows whose
// student has left the directory are skipped.
func (s *Service) Aggregate(ctx context.Context, start, end time.Time) (WindowSummary, error) {
	if end.Before(start) {
		return WindowSummary{}, apperr.Validationf("window end before start")
	}
	sum := WindowSummary{Start: start, End: end}

	rows, err := s.store.QueryUpdatedBetween(ctx, attendance.Day(end), start, end)
	if err != nil {
		return WindowSummary{}, err
	}

	byMeal := make(map[meal.Meal][]StudentRef)
	seen := make(map[meal.Meal]map[string]bool)
	for _, rec := range rows {
		student, err := s.dir.Lookup(ctx, rec.StudentID)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return WindowSummary{}, err
		}
		eligible := s.resolver.Resolve(student.PlanID, student.PlanMeals)
		for _, m := range meal.Order {
			if !rec.Marked(m) || !eligible.Has(m) {
				continue
			}
			if seen[m] == nil {
				seen[m] = make(map[string]bool)
			}
			if seen[m][rec.StudentID] {
				continue
			}
			seen[m][rec.StudentID] = true
			byMeal[m] = append(byMeal[m], StudentRef{Name: student.Name, RollNumber: student.RollNumber})
		}
	}

	for _, m := range meal.Order {
		if refs := byMeal[m]; len(refs) > 0 {
			sum.Meals = append(sum.Meals, MealActivity{Meal: m, Count: len(refs), Students: refs})
		}
	}
	return sum, nil
}

// TodayStats counts currently-active students and how many of them have
// at least one eligible meal marked today. Both sides of the ratio use
// plan eligibility, so the footer agrees with the per-meal breakdown.
func (s *Service) TodayStats(ctx context.Context) (Stats, error) {
	today := attendance.Day(s.now())

	total, err := s.dir.CountActive(ctx, today)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.store.RowsForDay(ctx, today)
	if err != nil {
		return Stats{}, err
	}

	present := 0
	for _, rec := range rows {
		student, err := s.dir.Lookup(ctx, rec.StudentID)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return Stats{}, err
		}
		eligible := s.resolver.Resolve(student.PlanID, student.PlanMeals)
		for _, m := range meal.Order {
			if rec.Marked(m) && eligible.Has(m) {
				present++
				break
			}
		}
	}

	stats := Stats{Total: total, Present: present}
	if total > 0 {
		stats.Percentage = int(math.Round(float64(present) / float64(total) * 100))
	}
	return stats, nil
}
