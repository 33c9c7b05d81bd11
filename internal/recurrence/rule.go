// Package recurrence provides the recurrence rule model and window
// expansion for recurring templates.
package recurrence

import (
	"fmt"
	"strings"
	"sync"

	"github.com/teambition/rrule-go"
)

// Rule is an immutable recurrence pattern. The canonical summary string
// (RFC 5545 RRULE text, e.g. "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE") is the
// authoritative, persisted representation; the parsed structure is a lazily
// recomputed cache and never participates in equality.
type Rule struct {
	summary string

	once sync.Once
	opt  *rrule.ROption
	err  error
}

// Parse validates and wraps a canonical rule summary. Only DAILY, WEEKLY
// and MONTHLY frequencies are supported.
func Parse(summary string) (*Rule, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("empty recurrence rule")
	}
	opt, err := rrule.StrToROption(summary)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence rule %q: %w", summary, err)
	}
	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY:
	default:
		return nil, fmt.Errorf("unsupported recurrence frequency in %q", summary)
	}
	return &Rule{summary: summary}, nil
}

// Summary returns the canonical rule text.
func (r *Rule) Summary() string {
	return r.summary
}

// Equal compares rules on their canonical summary alone.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.summary == other.summary
}

// option returns the parsed form, computing it on first use.
func (r *Rule) option() (rrule.ROption, error) {
	r.once.Do(func() {
		r.opt, r.err = rrule.StrToROption(r.summary)
	})
	if r.err != nil {
		return rrule.ROption{}, fmt.Errorf("parse recurrence rule %q: %w", r.summary, r.err)
	}
	// Copy so callers cannot mutate the cache.
	return *r.opt, nil
}

var weekdayNames = map[int]string{
	0: "Monday", 1: "Tuesday", 2: "Wednesday", 3: "Thursday",
	4: "Friday", 5: "Saturday", 6: "Sunday",
}

var ordinalNames = map[int]string{
	1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 5: "5th", -1: "last",
}

// Describe renders a human-readable summary, e.g. "every 2 weeks on
// Monday, Wednesday". Falls back to the raw summary when the parsed form
// is unavailable.
func (r *Rule) Describe() string {
	opt, err := r.option()
	if err != nil {
		return r.summary
	}

	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}

	var unit string
	switch opt.Freq {
	case rrule.DAILY:
		unit = "day"
	case rrule.WEEKLY:
		unit = "week"
	case rrule.MONTHLY:
		unit = "month"
	default:
		return r.summary
	}

	head := "every " + unit
	if interval > 1 {
		head = fmt.Sprintf("every %d %ss", interval, unit)
	}

	if len(opt.Byweekday) == 0 {
		return head
	}

	parts := make([]string, 0, len(opt.Byweekday))
	for _, wd := range opt.Byweekday {
		name := weekdayNames[wd.Day()]
		if n := wd.N(); n != 0 && opt.Freq == rrule.MONTHLY {
			if ord, ok := ordinalNames[n]; ok {
				name = ord + " " + name
			}
		}
		parts = append(parts, name)
	}
	return head + " on " + strings.Join(parts, ", ")
}
