// Package planner provides the commitment lifecycle engine: two-tier
// validation, conflict detection, recurrence solidification and the HTTP
// API exposing them.
package planner

import (
	"log"
	"sync"
	"time"

	"github.com/fentz26/tempora/internal/clock"
	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/store"
	"github.com/fentz26/tempora/internal/timetrack"
)

// Service orchestrates commitment and template lifecycles. It is stateless
// between calls: every operation reads what it needs from the store within
// the call. Mutating operations are serialized per owner; cross-owner
// operations run independently.
type Service struct {
	store   *store.Store
	clock   clock.Clock
	tracker timetrack.Tracker
	zone    *time.Location

	mu         sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

// NewService creates a planner service. zone is the default owner zone
// used when a request does not carry its own.
func NewService(s *store.Store, clk clock.Clock, tracker timetrack.Tracker, zone *time.Location) *Service {
	if zone == nil {
		zone = time.UTC
	}
	return &Service{
		store:      s,
		clock:      clk,
		tracker:    tracker,
		zone:       zone,
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

// Zone returns the service's default owner zone.
func (s *Service) Zone() *time.Location {
	return s.zone
}

// lockOwner serializes mutating operations for one owner and returns the
// unlock func.
func (s *Service) lockOwner(ownerID string) func() {
	s.mu.Lock()
	l, ok := s.ownerLocks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.ownerLocks[ownerID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// --- Commitment Operations ---

// CreateCommitment persists a new commitment. Confirmed commitments are
// fully validated and conflict-checked first; drafts are intentionally
// permissive and skip both.
func (s *Service) CreateCommitment(c *models.Commitment) error {
	unlock := s.lockOwner(c.OwnerID)
	defer unlock()
	return s.createCommitmentLocked(c)
}

func (s *Service) createCommitmentLocked(c *models.Commitment) error {
	if !c.Provisional {
		if err := s.validateConfirmedCommitment(c); err != nil {
			return err
		}
		conflicting, err := s.findConflict(c.OwnerID, *c.StartAt, c.EndAt, "")
		if err != nil {
			return err
		}
		if conflicting != nil {
			return &ConflictError{With: conflicting}
		}
	}
	return s.store.CreateCommitment(c)
}

// UpdateCommitment rewrites a commitment after conditional validation. The
// owner and originating-template reference are immutable. Completing a
// commitment whose end lies in the future (owner zone) is rejected.
// Completion and category transitions notify the time tracker with
// before/after snapshots.
func (s *Service) UpdateCommitment(c *models.Commitment) error {
	prev, err := s.store.GetCommitment(c.ID)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrNotFound
	}

	unlock := s.lockOwner(prev.OwnerID)
	defer unlock()

	c.OwnerID = prev.OwnerID
	c.TemplateID = prev.TemplateID // set once at solidification, never reassigned
	c.CreatedAt = prev.CreatedAt

	if !c.Provisional {
		if err := s.validateConfirmedCommitment(c); err != nil {
			return err
		}
		conflicting, err := s.findConflict(c.OwnerID, *c.StartAt, c.EndAt, c.ID)
		if err != nil {
			return err
		}
		if conflicting != nil {
			return &ConflictError{With: conflicting}
		}
	}

	if !prev.Completed && c.Completed {
		if c.EndAt == nil {
			return &MissingFieldError{Field: "end"}
		}
		now := s.clock.Now(s.zone)
		if c.EndAt.After(now) {
			return &TimeRangeError{Reason: "cannot complete a commitment that ends in the future"}
		}
	}

	if err := s.store.UpdateCommitment(c); err != nil {
		return err
	}

	s.notifyTracker(prev, c)
	return nil
}

// ConfirmCommitment promotes a draft to confirmed after full validation
// and conflict detection. The draft was invisible to conflict checks, so
// no self-exclusion is needed. On any failure the commitment remains
// provisional and unmodified.
func (s *Service) ConfirmCommitment(id string) (*models.Commitment, error) {
	c, err := s.store.GetCommitment(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if !c.Provisional {
		return nil, ErrAlreadyConfirmed
	}

	unlock := s.lockOwner(c.OwnerID)
	defer unlock()

	if err := s.validateConfirmedCommitment(c); err != nil {
		return nil, err
	}
	conflicting, err := s.findConflict(c.OwnerID, *c.StartAt, c.EndAt, "")
	if err != nil {
		return nil, err
	}
	if conflicting != nil {
		return nil, &ConflictError{With: conflicting}
	}

	c.Provisional = false
	if err := s.store.UpdateCommitment(c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCommitment removes a commitment unconditionally.
func (s *Service) DeleteCommitment(id string) error {
	return s.store.DeleteCommitment(id)
}

// GetCommitment retrieves a commitment by id.
func (s *Service) GetCommitment(id string) (*models.Commitment, error) {
	return s.store.GetCommitment(id)
}

// ListCommitments returns the owner's commitments overlapping [from, to).
func (s *Service) ListCommitments(ownerID string, from, to time.Time) ([]models.Commitment, error) {
	return s.store.ListCommitments(ownerID, from, to)
}

// validateConfirmedCommitment enforces the confirmed-commitment invariant:
// name, start and category must be present; the category must belong to
// the owner; when an end is present it must lie strictly after the start.
// An absent end designates an open-ended commitment and is permitted.
func (s *Service) validateConfirmedCommitment(c *models.Commitment) error {
	if c.Name == nil || *c.Name == "" {
		return &MissingFieldError{Field: "name"}
	}
	if c.StartAt == nil {
		return &MissingFieldError{Field: "start"}
	}
	if c.CategoryID == nil || *c.CategoryID == "" {
		return &MissingFieldError{Field: "category"}
	}
	if err := s.checkCategoryOwnership(c.OwnerID, *c.CategoryID); err != nil {
		return err
	}
	if c.EndAt != nil && !c.StartAt.Before(*c.EndAt) {
		return &TimeRangeError{Reason: "start must be strictly before end"}
	}
	return nil
}

// checkCategoryOwnership resolves a category id and verifies the owner
// actually owns it.
func (s *Service) checkCategoryOwnership(ownerID, categoryID string) error {
	cat, err := s.store.GetCategory(categoryID)
	if err != nil {
		return err
	}
	if cat == nil {
		return &MissingFieldError{Field: "category"}
	}
	if cat.OwnerID != ownerID {
		return ErrCategoryOwnership
	}
	return nil
}

// notifyTracker hands a before/after snapshot to the time-tracking
// collaborator when completion state or category changed. The engine does
// not depend on the tracker's outcome; failures are logged and dropped.
func (s *Service) notifyTracker(prev, next *models.Commitment) {
	completionChanged := prev.Completed != next.Completed
	categoryChanged := derefOr(prev.CategoryID) != derefOr(next.CategoryID)
	if !completionChanged && !categoryChanged {
		return
	}

	ctx := models.ChangeContext{
		OwnerID:            next.OwnerID,
		OldCategoryID:      derefOr(prev.CategoryID),
		NewCategoryID:      derefOr(next.CategoryID),
		OldStart:           prev.StartAt,
		NewStart:           next.StartAt,
		OldDurationMinutes: prev.DurationMinutes(),
		NewDurationMinutes: next.DurationMinutes(),
		Zone:               s.zone,
		WasCompleted:       prev.Completed,
		IsCompleted:        next.Completed,
	}
	if err := s.tracker.Apply(ctx); err != nil {
		log.Printf("time tracker notification failed for commitment %s: %v", next.ID, err)
	}
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Category Operations ---

// CreateCategory adds a category for an owner.
func (s *Service) CreateCategory(ownerID, name string) (*models.Category, error) {
	return s.store.CreateCategory(ownerID, name)
}

// ListCategories returns the owner's categories.
func (s *Service) ListCategories(ownerID string) ([]models.Category, error) {
	return s.store.ListCategories(ownerID)
}

// TimeBuckets returns the owner's tracked minutes per category and day.
func (s *Service) TimeBuckets(ownerID, fromDay, toDay string) ([]models.TimeBucket, error) {
	return s.store.BucketsInRange(ownerID, fromDay, toDay)
}
