package planner

import (
	"fmt"
	"log"
	"time"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/recurrence"
)

// Solidify materializes the owner's recurring templates into concrete
// commitments within [windowStart, windowEnd). For every confirmed
// template whose active range intersects the window, the recurrence is
// expanded over the window's local dates in zone, honoring skip days.
//
// Dates whose local start date already carries a materialized instance of
// the template are skipped, which makes repeated runs over overlapping
// windows idempotent. Occurrences whose end instant is not strictly before
// windowEnd are deferred to a later pass. Candidates that overlap an
// already-materialized confirmed commitment in the window are created
// provisional; the rest confirmed. Creation delegates to the lifecycle
// create, which re-validates and re-checks conflicts for confirmed
// commitments.
//
// Returns the number of commitments created.
func (s *Service) Solidify(ownerID string, windowStart, windowEnd time.Time, zone *time.Location) (int, error) {
	if zone == nil {
		zone = s.zone
	}
	unlock := s.lockOwner(ownerID)
	defer unlock()

	fromDate := recurrence.DateOf(windowStart, zone)
	toDate := recurrence.DateOf(windowEnd, zone)

	templates, err := s.store.ActiveTemplates(ownerID, models.DayKey(fromDate), models.DayKey(toDate))
	if err != nil {
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	inWindow, err := s.store.ListCommitments(ownerID, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	// Local start dates already materialized, per template.
	materialized := make(map[string]map[string]bool)
	var confirmed []models.Commitment
	for _, c := range inWindow {
		if c.TemplateID != nil && c.StartAt != nil {
			days := materialized[*c.TemplateID]
			if days == nil {
				days = make(map[string]bool)
				materialized[*c.TemplateID] = days
			}
			days[models.LocalDayKey(*c.StartAt, zone)] = true
		}
		if !c.Provisional {
			confirmed = append(confirmed, c)
		}
	}

	created := 0
	for i := range templates {
		tpl := &templates[i]

		rule, err := recurrence.Parse(tpl.Rule)
		if err != nil {
			return created, fmt.Errorf("template %s: %w", tpl.ID, err)
		}
		skip := make(map[string]bool, len(tpl.SkipDays))
		for _, day := range tpl.SkipDays {
			skip[day] = true
		}
		var until time.Time
		if tpl.EndDate != nil {
			until = *tpl.EndDate
		}

		dates, err := recurrence.Expand(rule, *tpl.StartDate, until, fromDate, toDate, skip)
		if err != nil {
			return created, fmt.Errorf("template %s: %w", tpl.ID, err)
		}

		for _, date := range dates {
			start, end := occurrenceSpan(tpl, date, zone)
			if !end.Before(windowEnd) {
				// Partially-out-of-window occurrences wait for a later pass.
				continue
			}
			if materialized[tpl.ID][models.LocalDayKey(start, zone)] {
				continue
			}

			conflicting := timedOverlapIn(confirmed, start, end)

			categoryID := tpl.CategoryID
			if categoryID == nil {
				def, err := s.store.EnsureDefaultCategory(ownerID)
				if err != nil {
					return created, err
				}
				categoryID = &def.ID
			}

			templateID := tpl.ID
			c := &models.Commitment{
				OwnerID:     ownerID,
				Name:        tpl.Name,
				StartAt:     &start,
				EndAt:       &end,
				TemplateID:  &templateID,
				CategoryID:  categoryID,
				Description: tpl.Description,
				Provisional: conflicting != nil,
			}
			if err := s.createCommitmentLocked(c); err != nil {
				return created, fmt.Errorf("solidify template %s on %s: %w", tpl.ID, models.DayKey(date), err)
			}

			days := materialized[tpl.ID]
			if days == nil {
				days = make(map[string]bool)
				materialized[tpl.ID] = days
			}
			days[models.LocalDayKey(start, zone)] = true
			if !c.Provisional {
				confirmed = append(confirmed, *c)
			}
			created++
		}
	}

	if created > 0 {
		log.Printf("Solidified %d commitments for owner %s in [%s, %s)",
			created, ownerID, models.DayKey(fromDate), models.DayKey(toDate))
	}
	return created, nil
}
