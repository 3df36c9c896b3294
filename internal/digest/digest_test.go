package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mess/internal/apperr"
	"mess/internal/attendance"
	"mess/internal/meal"
	"mess/internal/roster"
)

var (
	now         = time.Date(2024, 3, 12, 8, 5, 0, 0, time.UTC)
	windowStart = now.Add(-10 * time.Minute)
)

func seedDirectory() *roster.InMemoryDirectory {
	join := now.AddDate(0, -2, 0)
	end := now.AddDate(0, 2, 0)
	return roster.NewInMemoryDirectory(
		roster.Student{ID: "s1", Name: "Aisha", RollNumber: "101", PlanID: "p-full",
			PlanMeals: "Breakfast, Lunch, Dinner", IsActive: true, JoinDate: join, EndDate: end},
		roster.Student{ID: "s2", Name: "Rahul", RollNumber: "102", PlanID: "p-full",
			PlanMeals: "Breakfast, Lunch, Dinner", IsActive: true, JoinDate: join, EndDate: end},
		roster.Student{ID: "s3", Name: "Meera", RollNumber: "103", PlanID: "p-lunch",
			PlanMeals: "Lunch only", IsActive: true, JoinDate: join, EndDate: end},
		roster.Student{ID: "s4", Name: "Left Already", RollNumber: "104", PlanID: "p-full",
			PlanMeals: "Breakfast, Lunch, Dinner", IsActive: true, JoinDate: join, EndDate: now.AddDate(0, 0, -1)},
	)
}

func newDigest(store attendance.Store, dir roster.Directory) *Service {
	return NewService(store, dir, meal.NewResolver()).
		WithNow(func() time.Time { return now })
}

func mark(t *testing.T, store attendance.Store, studentID string, at time.Time, marks attendance.Marks) {
	t.Helper()
	_, err := store.Upsert(context.Background(), studentID, at, marks, at)
	require.NoError(t, err)
}

func TestAggregateGroupsByMeal(t *testing.T) {
	store := attendance.NewInMemoryStore()
	mark(t, store, "s1", now.Add(-5*time.Minute), attendance.Marks{meal.Breakfast: true})
	mark(t, store, "s2", now.Add(-3*time.Minute), attendance.Marks{meal.Breakfast: true, meal.Lunch: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	require.Len(t, sum.Meals, 2)

	assert.Equal(t, meal.Breakfast, sum.Meals[0].Meal)
	assert.Equal(t, 2, sum.Meals[0].Count)
	assert.Len(t, sum.Meals[0].Students, 2)

	assert.Equal(t, meal.Lunch, sum.Meals[1].Meal)
	assert.Equal(t, 1, sum.Meals[1].Count)
	assert.Equal(t, "Rahul", sum.Meals[1].Students[0].Name)
}

func TestAggregateNeverReturnsZeroCountMeals(t *testing.T) {
	store := attendance.NewInMemoryStore()
	mark(t, store, "s1", now.Add(-time.Minute), attendance.Marks{meal.Breakfast: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	for _, ma := range sum.Meals {
		assert.Greater(t, ma.Count, 0)
		assert.Len(t, ma.Students, ma.Count)
	}
	require.Len(t, sum.Meals, 1)
}

func TestAggregateFiltersEligibility(t *testing.T) {
	store := attendance.NewInMemoryStore()
	// s3's plan covers lunch only; a stray breakfast flag (written before
	// a plan change) must not surface under breakfast.
	mark(t, store, "s3", now.Add(-time.Minute), attendance.Marks{meal.Breakfast: true, meal.Lunch: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	require.Len(t, sum.Meals, 1)
	assert.Equal(t, meal.Lunch, sum.Meals[0].Meal)
}

func TestAggregateStudentAppearsOncePerMeal(t *testing.T) {
	store := attendance.NewInMemoryStore()
	// Two updates to the same row stay a single record under the
	// (student, day) key; the student lists one entry per eligible meal.
	mark(t, store, "s1", now.Add(-8*time.Minute), attendance.Marks{meal.Breakfast: true})
	mark(t, store, "s1", now.Add(-2*time.Minute), attendance.Marks{meal.Lunch: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	require.Len(t, sum.Meals, 2)
	for _, ma := range sum.Meals {
		assert.Equal(t, 1, ma.Count)
	}
}

func TestAggregateHonoursWindowBounds(t *testing.T) {
	store := attendance.NewInMemoryStore()
	mark(t, store, "s1", now.Add(-30*time.Minute), attendance.Marks{meal.Breakfast: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	assert.Empty(t, sum.Meals, "updates older than the window are excluded")
}

func TestAggregateSkipsUnknownStudents(t *testing.T) {
	store := attendance.NewInMemoryStore()
	mark(t, store, "ghost", now.Add(-time.Minute), attendance.Marks{meal.Breakfast: true})

	sum, err := newDigest(store, seedDirectory()).Aggregate(context.Background(), windowStart, now)
	require.NoError(t, err)
	assert.Empty(t, sum.Meals)
}

func TestAggregateRejectsInvertedWindow(t *testing.T) {
	_, err := newDigest(attendance.NewInMemoryStore(), seedDirectory()).
		Aggregate(context.Background(), now, now.Add(-time.Minute))
	assert.True(t, apperr.IsValidation(err))
}

func TestTodayStats(t *testing.T) {
	store := attendance.NewInMemoryStore()
	mark(t, store, "s1", now.Add(-time.Hour), attendance.Marks{meal.Breakfast: true})
	mark(t, store, "s2", now.Add(-time.Minute), attendance.Marks{meal.Lunch: true})

	stats, err := newDigest(store, seedDirectory()).TodayStats(context.Background())
	require.NoError(t, err)
	// s4's membership ended yesterday, so three active students.
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Present)
	assert.Equal(t, 67, stats.Percentage)
}

func TestTodayStatsIgnoresIneligibleOnlyRows(t *testing.T) {
	store := attendance.NewInMemoryStore()
	// Only an ineligible flag set: not counted as present.
	mark(t, store, "s3", now.Add(-time.Minute), attendance.Marks{meal.Dinner: true})

	stats, err := newDigest(store, seedDirectory()).TodayStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Present)
}

func TestTodayStatsEmptyRoster(t *testing.T) {
	stats, err := newDigest(attendance.NewInMemoryStore(), roster.NewInMemoryDirectory()).
		TodayStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Percentage, "no division by zero")
}
