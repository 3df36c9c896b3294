package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mess/internal/apperr"
	"mess/internal/meal"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"frequency outside whitelist", func(c *Config) { c.FrequencyMinutes = 7 }, true},
		{"zero frequency", func(c *Config) { c.FrequencyMinutes = 0 }, true},
		{"inverted range", func(c *Config) { c.ActiveHours.Lunch = HourRange{Start: 15, End: 12} }, true},
		{"negative start", func(c *Config) { c.ActiveHours.Breakfast = HourRange{Start: -1, End: 10} }, true},
		{"end past midnight", func(c *Config) { c.ActiveHours.Dinner = HourRange{Start: 19, End: 25} }, true},
		{"overlapping meals", func(c *Config) { c.ActiveHours.Lunch = HourRange{Start: 9, End: 15} }, true},
		{"adjacent ranges are fine", func(c *Config) {
			c.ActiveHours.Breakfast = HourRange{Start: 7, End: 12}
			c.ActiveHours.Lunch = HourRange{Start: 12, End: 15}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShouldSendHalfOpenRanges(t *testing.T) {
	cfg := DefaultConfig()
	// Defaults: breakfast 7-10, lunch 12-15, dinner 19-22.
	for hour := 0; hour < 24; hour++ {
		want := (hour >= 7 && hour < 10) || (hour >= 12 && hour < 15) || (hour >= 19 && hour < 22)
		assert.Equalf(t, want, cfg.ShouldSend(hour), "hour %d", hour)
	}
}

func TestShouldSendOutsideAllWindows(t *testing.T) {
	// 11:30 with default hours: nothing may be sent regardless of
	// pending activity.
	assert.False(t, DefaultConfig().ShouldSend(11))
}

func TestMealAt(t *testing.T) {
	cfg := DefaultConfig()

	m, ok := cfg.MealAt(8)
	require.True(t, ok)
	assert.Equal(t, meal.Breakfast, m)

	m, ok = cfg.MealAt(12)
	require.True(t, ok)
	assert.Equal(t, meal.Lunch, m)

	_, ok = cfg.MealAt(15) // half-open: 15 is outside lunch
	assert.False(t, ok)

	m, ok = cfg.MealAt(21)
	require.True(t, ok)
	assert.Equal(t, meal.Dinner, m)

	_, ok = cfg.MealAt(3)
	assert.False(t, ok)
}

func TestFrequencyDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrequencyMinutes = 10
	assert.Equal(t, 10*time.Minute, cfg.Frequency())
}
