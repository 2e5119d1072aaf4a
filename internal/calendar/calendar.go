// Package calendar derives the calendar features used by the forecast model.
package calendar

import "time"

// weekdayNames is indexed by the Monday=0 convention. A fixed table keeps the
// output independent of the host locale.
var weekdayNames = [7]string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Month returns the month number, 1-12
func Month(t time.Time) int {
	return int(t.Month())
}

// DayOfWeek returns the weekday with Monday=0 and Sunday=6
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekdayName returns the English weekday name
func WeekdayName(t time.Time) string {
	return weekdayNames[DayOfWeek(t)]
}

// Range returns n consecutive days starting the day after last
func Range(last time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	start := Day(last)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i+1)
	}
	return days
}
