package meal

import "strings"

// Meal identifies one of the three daily meal windows.
type Meal string

const (
	Breakfast Meal = "breakfast"
	Lunch     Meal = "lunch"
	Dinner    Meal = "dinner"
)

// Order is the canonical breakfast-first iteration order.
var Order = []Meal{Breakfast, Lunch, Dinner}

// Valid reports whether m is one of the three known meals.
func (m Meal) Valid() bool {
	return m == Breakfast || m == Lunch || m == Dinner
}

// Title returns the display name ("Breakfast").
func (m Meal) Title() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

// Set is a bitmask of meals a plan entitles a student to.
type Set uint8

const (
	bitBreakfast Set = 1 << iota
	bitLunch
	bitDinner
)

func bitOf(m Meal) Set {
	switch m {
	case Breakfast:
		return bitBreakfast
	case Lunch:
		return bitLunch
	case Dinner:
		return bitDinner
	}
	return 0
}

// Has reports whether m is in the set.
func (s Set) Has(m Meal) bool { return s&bitOf(m) != 0 }

// Add puts m into the set.
func (s *Set) Add(m Meal) { *s |= bitOf(m) }

// Empty reports whether no meal is in the set.
func (s Set) Empty() bool { return s == 0 }

// Meals returns the set members in canonical order.
func (s Set) Meals() []Meal {
	var out []Meal
	for _, m := range Order {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s Set) String() string {
	names := make([]string, 0, 3)
	for _, m := range s.Meals() {
		names = append(names, string(m))
	}
	return strings.Join(names, ",")
}

// ParsePlanMeals derives the eligible set from a plan's free-text meal
// description by case-insensitive substring containment of the full meal
// names. Abbreviation-only text such as "B, L, D" matches nothing and
// resolves to the empty set; callers can detect that with Empty.
func ParsePlanMeals(text string) Set {
	lowered := strings.ToLower(text)
	var s Set
	for _, m := range Order {
		if strings.Contains(lowered, string(m)) {
			s.Add(m)
		}
	}
	return s
}
