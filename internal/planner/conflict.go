package planner

import (
	"time"

	"github.com/fentz26/tempora/internal/models"
)

// findConflict reports the first confirmed commitment of the owner whose
// range overlaps the candidate [start, end). A nil end designates an
// open-ended candidate. excludeID removes the commitment itself from
// consideration when validating an update. The store query narrows
// candidates to the relevant window before the pure overlap decision runs.
func (s *Service) findConflict(ownerID string, start time.Time, end *time.Time, excludeID string) (*models.Commitment, error) {
	existing, err := s.store.ConfirmedOverlapping(ownerID, start, end)
	if err != nil {
		return nil, err
	}
	return overlapIn(existing, start, end, excludeID), nil
}

// overlapIn is the pure conflict decision over a bounded candidate set.
//
// Timed vs timed ranges conflict iff existing.start < end AND
// existing.end > start; touching endpoints never conflict. An open-ended
// candidate (nil end) conflicts with any timed commitment whose end is
// after start, or with another open-ended commitment sharing the exact
// start instant. The same rules apply symmetrically when the existing
// commitment is the open-ended one.
func overlapIn(existing []models.Commitment, start time.Time, end *time.Time, excludeID string) *models.Commitment {
	for i := range existing {
		ex := &existing[i]
		if ex.ID == excludeID || ex.StartAt == nil {
			continue
		}

		if end == nil {
			if ex.EndAt != nil {
				if ex.EndAt.After(start) {
					return ex
				}
			} else if ex.StartAt.Equal(start) {
				return ex
			}
			continue
		}

		if ex.EndAt == nil {
			if end.After(*ex.StartAt) {
				return ex
			}
			continue
		}

		if ex.StartAt.Before(*end) && ex.EndAt.After(start) {
			return ex
		}
	}
	return nil
}

// timedOverlapIn applies only the timed-vs-timed rule, used by the
// solidifier's in-window pass where open-ended commitments are not
// considered.
func timedOverlapIn(existing []models.Commitment, start, end time.Time) *models.Commitment {
	for i := range existing {
		ex := &existing[i]
		if ex.StartAt == nil || ex.EndAt == nil {
			continue
		}
		if ex.StartAt.Before(end) && ex.EndAt.After(start) {
			return ex
		}
	}
	return nil
}
