package meal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlanMeals(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Meal
	}{
		{"all three", "Breakfast, Lunch, Dinner", []Meal{Breakfast, Lunch, Dinner}},
		{"mixed case", "BREAKFAST and dinner only", []Meal{Breakfast, Dinner}},
		{"single", "Lunch", []Meal{Lunch}},
		{"embedded", "Includes breakfast+lunch", []Meal{Breakfast, Lunch}},
		{"abbreviations resolve empty", "B, L, D", nil},
		{"empty text", "", nil},
		{"unrelated text", "two meals a day", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePlanMeals(tt.text)
			assert.Equal(t, tt.want, got.Meals())
			assert.Equal(t, len(tt.want) == 0, got.Empty())
		})
	}
}

func TestSetOps(t *testing.T) {
	var s Set
	assert.True(t, s.Empty())
	s.Add(Dinner)
	s.Add(Breakfast)
	assert.True(t, s.Has(Breakfast))
	assert.False(t, s.Has(Lunch))
	assert.True(t, s.Has(Dinner))
	assert.Equal(t, []Meal{Breakfast, Dinner}, s.Meals())
	assert.Equal(t, "breakfast,dinner", s.String())
}

func TestMealTitle(t *testing.T) {
	assert.Equal(t, "Breakfast", Breakfast.Title())
	assert.Equal(t, "Dinner", Dinner.Title())
	assert.True(t, Lunch.Valid())
	assert.False(t, Meal("brunch").Valid())
}

func TestResolverCachesPerPlan(t *testing.T) {
	r := NewResolver()

	got := r.Resolve("plan-1", "Breakfast, Lunch")
	assert.True(t, got.Has(Breakfast))
	assert.False(t, got.Has(Dinner))

	// Cached: a changed text for the same plan id is not re-parsed.
	got = r.Resolve("plan-1", "Dinner")
	assert.True(t, got.Has(Breakfast))
	assert.False(t, got.Has(Dinner))

	// Until invalidated.
	r.Invalidate("plan-1")
	got = r.Resolve("plan-1", "Dinner")
	assert.True(t, got.Has(Dinner))
	assert.False(t, got.Has(Breakfast))
}

func TestResolverWithoutPlanID(t *testing.T) {
	r := NewResolver()
	assert.True(t, r.Resolve("", "lunch").Has(Lunch))
	assert.True(t, r.Resolve("", "dinner").Has(Dinner))
}
