package notify

import (
	"time"

	"mess/internal/apperr"
	"mess/internal/meal"
)

// HourRange is a half-open [Start, End) range of integer hours.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour falls inside the range.
func (h HourRange) Contains(hour int) bool {
	return hour >= h.Start && hour < h.End
}

func (h HourRange) overlaps(other HourRange) bool {
	return h.Start < other.End && other.Start < h.End
}

// ActiveHours holds the per-meal hour ranges during which the digest
// notification may fire.
type ActiveHours struct {
	Breakfast HourRange `json:"breakfast"`
	Lunch     HourRange `json:"lunch"`
	Dinner    HourRange `json:"dinner"`
}

// Range returns the range for a meal.
func (a ActiveHours) Range(m meal.Meal) HourRange {
	switch m {
	case meal.Breakfast:
		return a.Breakfast
	case meal.Lunch:
		return a.Lunch
	case meal.Dinner:
		return a.Dinner
	}
	return HourRange{}
}

// Config drives the notification scheduler. It lives in settings storage
// and is re-read at the start of every tick.
type Config struct {
	Enabled            bool        `json:"enabled"`
	FrequencyMinutes   int         `json:"frequency_minutes"`
	ActiveHours        ActiveHours `json:"active_hours"`
	ShowStudentNames   bool        `json:"show_student_names"`
	ShowWhenNoActivity bool        `json:"show_when_no_activity"`
}

// DefaultConfig returns the shipped defaults: every 30 minutes during
// breakfast 7-10, lunch 12-15 and dinner 19-22, names on, quiet windows
// silent.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		FrequencyMinutes: 30,
		ActiveHours: ActiveHours{
			Breakfast: HourRange{Start: 7, End: 10},
			Lunch:     HourRange{Start: 12, End: 15},
			Dinner:    HourRange{Start: 19, End: 22},
		},
		ShowStudentNames:   true,
		ShowWhenNoActivity: false,
	}
}

var allowedFrequencies = map[int]bool{5: true, 10: true, 15: true, 30: true, 60: true}

// Validate checks the config at write time. Reads trust stored configs,
// so anything that must hold at tick time is enforced here: the frequency
// whitelist, sane hour bounds and non-overlapping meal windows.
func (c Config) Validate() error {
	if !allowedFrequencies[c.FrequencyMinutes] {
		return apperr.Validationf("frequency must be one of 5, 10, 15, 30 or 60 minutes")
	}
	ranges := []struct {
		m meal.Meal
		r HourRange
	}{
		{meal.Breakfast, c.ActiveHours.Breakfast},
		{meal.Lunch, c.ActiveHours.Lunch},
		{meal.Dinner, c.ActiveHours.Dinner},
	}
	for _, e := range ranges {
		if e.r.Start < 0 || e.r.End > 24 || e.r.Start >= e.r.End {
			return apperr.Validationf("%s active hours must satisfy 0 <= start < end <= 24", e.m)
		}
	}
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].r.overlaps(ranges[j].r) {
				return apperr.Validationf("%s and %s active hours overlap", ranges[i].m, ranges[j].m)
			}
		}
	}
	return nil
}

// ShouldSend reports whether the hour falls inside one of the three
// active-hour ranges.
func (c Config) ShouldSend(hour int) bool {
	_, ok := c.MealAt(hour)
	return ok
}

// MealAt returns the meal whose active hours contain the given hour.
// Validation forbids overlap, so at most one matches.
func (c Config) MealAt(hour int) (meal.Meal, bool) {
	for _, m := range meal.Order {
		if c.ActiveHours.Range(m).Contains(hour) {
			return m, true
		}
	}
	return "", false
}

// Frequency returns the digest cadence as a duration.
func (c Config) Frequency() time.Duration {
	return time.Duration(c.FrequencyMinutes) * time.Minute
}
