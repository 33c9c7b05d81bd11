// Package models defines the core domain types for Tempora.
package models

import (
	"fmt"
	"time"
)

// Commitment is a single scheduled occupation of time. A commitment with a
// nil EndAt is open-ended: the owner is currently in the activity with no
// declared end. Provisional commitments (drafts) may leave any field unset.
type Commitment struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        *string    `json:"name,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	TemplateID  *string    `json:"template_id,omitempty"`
	CategoryID  *string    `json:"category_id,omitempty"`
	Description string     `json:"description,omitempty"`
	Provisional bool       `json:"provisional"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Timed reports whether the commitment has both endpoints set.
func (c *Commitment) Timed() bool {
	return c.StartAt != nil && c.EndAt != nil
}

// DurationMinutes returns the span of a timed commitment in whole minutes,
// or zero when either endpoint is missing.
func (c *Commitment) DurationMinutes() int {
	if !c.Timed() {
		return 0
	}
	return int(c.EndAt.Sub(*c.StartAt) / time.Minute)
}

// RecurringTemplate is a pattern that generates commitments over time.
// StartDate/EndDate bound the pattern as calendar dates; StartClock/EndClock
// are the local times of day each generated commitment occupies. SkipDays
// lists dates (formatted as DayKey) on which the pattern is suppressed.
type RecurringTemplate struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        *string    `json:"name,omitempty"`
	StartClock  *TimeOfDay `json:"start_clock,omitempty"`
	EndClock    *TimeOfDay `json:"end_clock,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `json:"description,omitempty"`
	CategoryID  *string    `json:"category_id,omitempty"`
	Rule        string     `json:"rule,omitempty"`
	SkipDays    []string   `json:"skip_days,omitempty"`
	Provisional bool       `json:"provisional"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Category groups commitments by area (work, health, study, etc.).
type Category struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategoryName is the fallback category each owner gets on demand.
const DefaultCategoryName = "Uncategorized"

// TimeOfDay is a local wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
		return tod, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return tod, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// On anchors the time of day onto a calendar date in the given location,
// producing an absolute instant.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// ChangeContext is the before/after snapshot handed to the time-tracking
// collaborator whenever a commitment's completion state or category changes.
type ChangeContext struct {
	OwnerID            string
	OldCategoryID      string
	NewCategoryID      string
	OldStart           *time.Time
	NewStart           *time.Time
	OldDurationMinutes int
	NewDurationMinutes int
	Zone               *time.Location
	WasCompleted       bool
	IsCompleted        bool
}

// TimeBucket aggregates completed-commitment minutes per owner, category
// and local calendar day.
type TimeBucket struct {
	OwnerID    string `json:"owner_id"`
	CategoryID string `json:"category_id"`
	Day        string `json:"day"`
	Minutes    int    `json:"minutes"`
}

// DayKey is the canonical string form of a calendar date, used for skip-day
// sets and idempotence matching during solidification.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// LocalDayKey is the calendar date of an instant observed in loc.
func LocalDayKey(t time.Time, loc *time.Location) string {
	return DayKey(t.In(loc))
}
