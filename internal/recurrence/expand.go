package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Expand produces the ordered calendar dates on which rule fires within
// the inclusive window [windowStart, windowEnd], excluding skipDays.
//
// dtstart anchors the pattern (the template's start date); until bounds it
// (the template's end date, zero when the pattern is indefinite). Both
// bounds are intersected with the window before expansion: a window
// entirely outside the bounds yields an empty result, not an error.
//
// All date arguments are calendar dates as produced by Date/DateOf; skip
// days are keyed by models.DayKey format ("2006-01-02"). Expansion is pure
// and deterministic: identical inputs always yield the identical ascending,
// duplicate-free sequence.
func Expand(rule *Rule, dtstart, until, windowStart, windowEnd time.Time, skipDays map[string]bool) ([]time.Time, error) {
	lo := windowStart
	if dtstart.After(lo) {
		lo = dtstart
	}
	hi := windowEnd
	if !until.IsZero() && until.Before(hi) {
		hi = until
	}
	if hi.Before(lo) {
		return nil, nil
	}

	opt, err := rule.option()
	if err != nil {
		return nil, err
	}
	opt.Dtstart = dtstart

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}

	set := &rrule.Set{}
	set.RRule(rr)
	for key := range skipDays {
		if day, err := ParseDate(key); err == nil {
			set.ExDate(day)
		}
	}

	starts := set.Between(lo, hi, true)
	dates := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		dates = append(dates, Date(s.Year(), s.Month(), s.Day()))
	}
	return dates, nil
}
