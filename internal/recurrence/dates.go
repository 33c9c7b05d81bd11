package recurrence

import (
	"fmt"
	"time"
)

// Calendar dates are represented as time.Time values pinned to midnight
// UTC. They carry no zone of their own; callers anchor them into an owner
// zone when an absolute instant is needed.

// Date builds a calendar date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf is the calendar date of an instant observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// ParseDate parses a "YYYY-MM-DD" string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
