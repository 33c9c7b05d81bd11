// Package timetrack records completed-commitment durations into
// per-category day buckets.
package timetrack

import (
	"fmt"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/store"
)

// Tracker is notified whenever a commitment's completion state or category
// changes. Callers never depend on its outcome beyond the error.
type Tracker interface {
	Apply(ctx models.ChangeContext) error
}

// BucketTracker aggregates minutes into store-backed time buckets keyed by
// the local calendar day of the commitment's start.
type BucketTracker struct {
	store *store.Store
}

// New creates a bucket tracker on top of the store.
func New(s *store.Store) *BucketTracker {
	return &BucketTracker{store: s}
}

// Apply removes the old contribution when the commitment was previously
// completed and adds the new one when it is completed now. A category
// change on a completed commitment therefore moves its minutes between
// buckets in one call.
func (t *BucketTracker) Apply(ctx models.ChangeContext) error {
	if ctx.WasCompleted && ctx.OldCategoryID != "" && ctx.OldStart != nil {
		day := models.LocalDayKey(*ctx.OldStart, ctx.Zone)
		if err := t.store.AddToBucket(ctx.OwnerID, ctx.OldCategoryID, day, -ctx.OldDurationMinutes); err != nil {
			return fmt.Errorf("remove old tracking: %w", err)
		}
	}
	if ctx.IsCompleted && ctx.NewCategoryID != "" && ctx.NewStart != nil {
		day := models.LocalDayKey(*ctx.NewStart, ctx.Zone)
		if err := t.store.AddToBucket(ctx.OwnerID, ctx.NewCategoryID, day, ctx.NewDurationMinutes); err != nil {
			return fmt.Errorf("add new tracking: %w", err)
		}
	}
	return nil
}

// Noop discards every notification. Useful in tests and for callers that
// do not track time.
type Noop struct{}

// Apply implements Tracker.
func (Noop) Apply(models.ChangeContext) error { return nil }
