// Package clock provides an injectable time source so that completion and
// future-date rules stay testable.
package clock

import "time"

// Clock yields "now" observed in a given zone.
type Clock interface {
	Now(loc *time.Location) time.Time
}

// System reads the ambient system clock.
type System struct{}

// Now returns the current instant in loc.
func (System) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// Fixed always reports the same instant. Intended for tests.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant in loc.
func (f Fixed) Now(loc *time.Location) time.Time {
	return f.At.In(loc)
}
