package planner

import (
	"time"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/recurrence"
)

// CreateTemplate persists a new recurring template. Confirmed templates
// are fully validated; drafts skip validation.
func (s *Service) CreateTemplate(tpl *models.RecurringTemplate) error {
	unlock := s.lockOwner(tpl.OwnerID)
	defer unlock()

	if !tpl.Provisional {
		if err := s.validateConfirmedTemplate(tpl); err != nil {
			return err
		}
	}
	return s.store.CreateTemplate(tpl)
}

// UpdateTemplate rewrites a template. Removing skip days re-runs conflict
// detection for every reintroduced date; any hit rejects the whole update.
// Changes to a confirmed template's name, times or category propagate to
// its already-solidified, future-dated instances. Returns the number of
// instances actually modified.
func (s *Service) UpdateTemplate(tpl *models.RecurringTemplate, zone *time.Location) (int, error) {
	prev, err := s.store.GetTemplate(tpl.ID)
	if err != nil {
		return 0, err
	}
	if prev == nil {
		return 0, ErrNotFound
	}

	unlock := s.lockOwner(prev.OwnerID)
	defer unlock()

	tpl.OwnerID = prev.OwnerID
	tpl.CreatedAt = prev.CreatedAt
	if zone == nil {
		zone = s.zone
	}
	return s.updateTemplateLocked(prev, tpl, zone)
}

func (s *Service) updateTemplateLocked(prev, tpl *models.RecurringTemplate, zone *time.Location) (int, error) {
	if !tpl.Provisional {
		if err := s.validateConfirmedTemplate(tpl); err != nil {
			return 0, err
		}
		if err := s.checkReintroducedDays(prev, tpl, zone); err != nil {
			return 0, err
		}
	}

	if err := s.store.UpdateTemplate(tpl); err != nil {
		return 0, err
	}

	if prev.Provisional || tpl.Provisional {
		return 0, nil
	}
	return s.propagate(prev, tpl, zone)
}

// ConfirmTemplate promotes a draft template to confirmed after full
// validation. Confirming an already-confirmed template is an error.
func (s *Service) ConfirmTemplate(id string) (*models.RecurringTemplate, error) {
	tpl, err := s.store.GetTemplate(id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrNotFound
	}
	if !tpl.Provisional {
		return nil, ErrAlreadyConfirmed
	}

	unlock := s.lockOwner(tpl.OwnerID)
	defer unlock()

	if err := s.validateConfirmedTemplate(tpl); err != nil {
		return nil, err
	}
	tpl.Provisional = false
	if err := s.store.UpdateTemplate(tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes a template. Already-solidified commitments are
// not altered retroactively.
func (s *Service) DeleteTemplate(id string) error {
	return s.store.DeleteTemplate(id)
}

// GetTemplate retrieves a template by id.
func (s *Service) GetTemplate(id string) (*models.RecurringTemplate, error) {
	return s.store.GetTemplate(id)
}

// ListTemplates returns all of the owner's templates, drafts included.
func (s *Service) ListTemplates(ownerID string) ([]models.RecurringTemplate, error) {
	return s.store.ListTemplates(ownerID)
}

// AddSkipDays suppresses the given dates on the template's pattern.
func (s *Service) AddSkipDays(id string, days []string, zone *time.Location) error {
	return s.editSkipDays(id, days, nil, zone)
}

// RemoveSkipDays reintroduces the given dates into the template's
// effective pattern, rejecting the whole removal if any reintroduced date
// would conflict with an existing confirmed commitment.
func (s *Service) RemoveSkipDays(id string, days []string, zone *time.Location) error {
	return s.editSkipDays(id, nil, days, zone)
}

func (s *Service) editSkipDays(id string, add, remove []string, zone *time.Location) error {
	prev, err := s.store.GetTemplate(id)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrNotFound
	}

	unlock := s.lockOwner(prev.OwnerID)
	defer unlock()

	for _, day := range append(append([]string{}, add...), remove...) {
		if _, err := recurrence.ParseDate(day); err != nil {
			return err
		}
	}

	next := *prev
	set := make(map[string]bool, len(prev.SkipDays)+len(add))
	for _, day := range prev.SkipDays {
		set[day] = true
	}
	for _, day := range add {
		set[day] = true
	}
	for _, day := range remove {
		delete(set, day)
	}
	next.SkipDays = make([]string, 0, len(set))
	for day := range set {
		next.SkipDays = append(next.SkipDays, day)
	}

	if zone == nil {
		zone = s.zone
	}
	_, err = s.updateTemplateLocked(prev, &next, zone)
	return err
}

// checkReintroducedDays runs the conflict detector for each date present
// in prev's skip set but absent from next's, now that the pattern fires on
// it again.
func (s *Service) checkReintroducedDays(prev, next *models.RecurringTemplate, zone *time.Location) error {
	if len(prev.SkipDays) == 0 {
		return nil
	}
	kept := make(map[string]bool, len(next.SkipDays))
	for _, day := range next.SkipDays {
		kept[day] = true
	}

	var rule *recurrence.Rule
	for _, day := range prev.SkipDays {
		if kept[day] {
			continue
		}
		date, err := recurrence.ParseDate(day)
		if err != nil {
			continue
		}

		if rule == nil {
			rule, err = recurrence.Parse(next.Rule)
			if err != nil {
				return err
			}
		}

		// Only dates the pattern actually fires on need re-checking.
		var until time.Time
		if next.EndDate != nil {
			until = *next.EndDate
		}
		fires, err := recurrence.Expand(rule, *next.StartDate, until, date, date, kept)
		if err != nil {
			return err
		}
		if len(fires) == 0 {
			continue
		}

		start, end := occurrenceSpan(next, date, zone)
		conflicting, err := s.findConflict(next.OwnerID, start, &end, "")
		if err != nil {
			return err
		}
		if conflicting != nil {
			return &ConflictError{With: conflicting}
		}
	}
	return nil
}

// propagate rewrites the changed fields onto every already-solidified,
// future-dated instance of the template, leaving past and completed
// instances untouched. Returns the count actually modified.
func (s *Service) propagate(prev, next *models.RecurringTemplate, zone *time.Location) (int, error) {
	nameChanged := derefOr(prev.Name) != derefOr(next.Name)
	categoryChanged := derefOr(prev.CategoryID) != derefOr(next.CategoryID)
	startChanged := clockChanged(prev.StartClock, next.StartClock)
	endChanged := clockChanged(prev.EndClock, next.EndClock)

	if !nameChanged && !categoryChanged && !startChanged && !endChanged {
		return 0, nil
	}

	now := s.clock.Now(zone)
	instances, err := s.store.FutureTemplateInstances(next.ID, now)
	if err != nil {
		return 0, err
	}

	modified := 0
	for i := range instances {
		inst := &instances[i]
		if inst.StartAt == nil {
			continue
		}
		date := recurrence.DateOf(*inst.StartAt, zone)
		changed := false

		if nameChanged {
			inst.Name = next.Name
			changed = true
		}
		if categoryChanged {
			inst.CategoryID = next.CategoryID
			changed = true
		}
		if startChanged || endChanged {
			start, end := occurrenceSpan(next, date, zone)
			if startChanged {
				inst.StartAt = &start
				changed = true
			}
			if endChanged {
				inst.EndAt = &end
				changed = true
			}
		}

		if changed {
			if err := s.store.UpdateCommitment(inst); err != nil {
				return modified, err
			}
			modified++
		}
	}
	return modified, nil
}

// occurrenceSpan computes the absolute start/end instants of a template
// occurrence on a calendar date in the given zone. When the end clock is
// not after the start clock the occurrence crosses midnight and ends the
// next day.
func occurrenceSpan(tpl *models.RecurringTemplate, date time.Time, zone *time.Location) (time.Time, time.Time) {
	start := tpl.StartClock.On(date, zone)
	endDate := date
	if !tpl.StartClock.Before(*tpl.EndClock) {
		endDate = date.AddDate(0, 0, 1)
	}
	end := tpl.EndClock.On(endDate, zone)
	return start, end
}

func clockChanged(a, b *models.TimeOfDay) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return a.Minutes() != b.Minutes()
	}
}

// validateConfirmedTemplate enforces the confirmed-template invariant:
// name, start/end times of day, start date, category and recurrence rule
// must all be present and the rule must parse. A same-day span requires
// the start time strictly before the end time; an end clock at or before
// the start clock otherwise denotes a midnight-crossing occurrence.
func (s *Service) validateConfirmedTemplate(tpl *models.RecurringTemplate) error {
	if tpl.Name == nil || *tpl.Name == "" {
		return &MissingFieldError{Field: "name"}
	}
	if tpl.StartClock == nil {
		return &MissingFieldError{Field: "start time"}
	}
	if tpl.EndClock == nil {
		return &MissingFieldError{Field: "end time"}
	}
	if tpl.StartDate == nil {
		return &MissingFieldError{Field: "start date"}
	}
	if tpl.CategoryID == nil || *tpl.CategoryID == "" {
		return &MissingFieldError{Field: "category"}
	}
	if tpl.Rule == "" {
		return &MissingFieldError{Field: "recurrence rule"}
	}
	if _, err := recurrence.Parse(tpl.Rule); err != nil {
		return err
	}
	if err := s.checkCategoryOwnership(tpl.OwnerID, *tpl.CategoryID); err != nil {
		return err
	}

	if tpl.StartClock.Minutes() == tpl.EndClock.Minutes() {
		return &TimeRangeError{Reason: "start time must be strictly before end time"}
	}
	// Midnight-crossing spans are only possible on multi-day templates.
	if tpl.EndDate != nil && tpl.StartDate.Equal(*tpl.EndDate) && !tpl.StartClock.Before(*tpl.EndClock) {
		return &TimeRangeError{Reason: "start time must be strictly before end time on a single-day template"}
	}
	return nil
}
