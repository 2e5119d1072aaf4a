package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarFeatures(t *testing.T) {
	tests := []struct {
		date      string
		month     int
		dayOfWeek int
		weekday   string
	}{
		{"2024-01-01", 1, 0, "Monday"},
		{"2024-01-07", 1, 6, "Sunday"},
		{"2024-02-29", 2, 3, "Thursday"},
		{"2023-12-31", 12, 6, "Sunday"},
		{"2024-06-15", 6, 5, "Saturday"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			assert.NoError(t, err)
			assert.Equal(t, tt.month, Month(d))
			assert.Equal(t, tt.dayOfWeek, DayOfWeek(d))
			assert.Equal(t, tt.weekday, WeekdayName(d))
		})
	}
}

func TestRange(t *testing.T) {
	last := time.Date(2024, 2, 27, 15, 30, 0, 0, time.UTC)

	days := Range(last, 4)
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}
	got := make([]string, len(days))
	for i, d := range days {
		got[i] = d.Format("2006-01-02")
		assert.Zero(t, d.Hour(), "range dates are truncated to midnight")
	}
	assert.Equal(t, want, got)

	assert.Empty(t, Range(last, 0))
	assert.Empty(t, Range(last, -3))
}
