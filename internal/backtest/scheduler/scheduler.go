// Package scheduler builds the weekly expiry calendar the wheel walks.
package scheduler

import "time"

// Day normalizes t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeeklyFridays returns every Friday in [start, end] inclusive, ascending.
// The first entry is the first Friday on or after start. An empty slice
// means the range contains no Friday.
func WeeklyFridays(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}

	offset := (int(time.Friday) - int(start.Weekday()) + 7) % 7
	var fridays []time.Time
	for d := start.AddDate(0, 0, offset); !d.After(end); d = d.AddDate(0, 0, 7) {
		fridays = append(fridays, d)
	}
	return fridays
}

// EntryDate returns the Monday of the expiry week, four calendar days
// before the given Friday.
func EntryDate(friday time.Time) time.Time {
	return friday.AddDate(0, 0, -4)
}
