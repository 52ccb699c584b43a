// Package calendar builds the date grids behind the event calendar views.
package calendar

import "time"

// Day is one cell of a month grid.
type Day struct {
	Date    time.Time
	InMonth bool
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthGrid returns six Sunday-first weeks covering month, padded with the
// tail of the previous month and the head of the next one.
func MonthGrid(year int, month time.Month, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	days := make([]Day, 42)
	for i := range days {
		d := start.AddDate(0, 0, i)
		days[i] = Day{Date: d, InMonth: d.Month() == first.Month()}
	}
	return days
}

// Weeks splits a grid into rows of seven.
func Weeks(days []Day) [][]Day {
	var out [][]Day
	for i := 0; i+7 <= len(days); i += 7 {
		out = append(out, days[i:i+7])
	}
	return out
}

// WeekDays returns the seven days of t's week, starting on Monday.
func WeekDays(t time.Time) []time.Time {
	d := midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}

// Hours is the row labels of the week view.
func Hours() []int {
	out := make([]int, 24)
	for i := range out {
		out[i] = i
	}
	return out
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatRange renders an event's span for lists and detail pages.
func FormatRange(start, end time.Time) string {
	if SameDay(start, end) {
		return start.Format("Mon, Jan 2 · 3:04 PM") + " - " + end.Format("3:04 PM")
	}
	return start.Format("Mon, Jan 2") + " - " + end.Format("Mon, Jan 2")
}
