package timetrack

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func TestApplyCompletion(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	tracker := New(s)

	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	err := tracker.Apply(models.ChangeContext{
		OwnerID:            "owner-1",
		NewCategoryID:      "cat-1",
		NewStart:           &start,
		NewDurationMinutes: 60,
		Zone:               time.UTC,
		IsCompleted:        true,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	buckets, _ := s.BucketsInRange("owner-1", "2024-03-04", "2024-03-04")
	if len(buckets) != 1 || buckets[0].Minutes != 60 {
		t.Fatalf("Unexpected buckets: %+v", buckets)
	}
}

func TestApplyCategoryMove(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	tracker := New(s)

	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	// Complete under cat-1, then move to cat-2 while staying completed.
	tracker.Apply(models.ChangeContext{
		OwnerID: "owner-1", NewCategoryID: "cat-1", NewStart: &start,
		NewDurationMinutes: 45, Zone: time.UTC, IsCompleted: true,
	})
	err := tracker.Apply(models.ChangeContext{
		OwnerID:       "owner-1",
		OldCategoryID: "cat-1", NewCategoryID: "cat-2",
		OldStart: &start, NewStart: &start,
		OldDurationMinutes: 45, NewDurationMinutes: 45,
		Zone:         time.UTC,
		WasCompleted: true, IsCompleted: true,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	buckets, _ := s.BucketsInRange("owner-1", "2024-03-04", "2024-03-04")
	total := map[string]int{}
	for _, b := range buckets {
		total[b.CategoryID] = b.Minutes
	}
	if total["cat-1"] != 0 {
		t.Errorf("cat-1 should be emptied, got %d", total["cat-1"])
	}
	if total["cat-2"] != 45 {
		t.Errorf("cat-2 should hold 45 minutes, got %d", total["cat-2"])
	}
}

func TestApplyUncomplete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	tracker := New(s)

	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	tracker.Apply(models.ChangeContext{
		OwnerID: "owner-1", NewCategoryID: "cat-1", NewStart: &start,
		NewDurationMinutes: 30, Zone: time.UTC, IsCompleted: true,
	})
	err := tracker.Apply(models.ChangeContext{
		OwnerID:       "owner-1",
		OldCategoryID: "cat-1", NewCategoryID: "cat-1",
		OldStart: &start, NewStart: &start,
		OldDurationMinutes: 30, NewDurationMinutes: 30,
		Zone:         time.UTC,
		WasCompleted: true, IsCompleted: false,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	buckets, _ := s.BucketsInRange("owner-1", "2024-03-04", "2024-03-04")
	if len(buckets) != 1 || buckets[0].Minutes != 0 {
		t.Fatalf("Expected emptied bucket, got %+v", buckets)
	}
}
