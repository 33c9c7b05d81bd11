package planner

import (
	"testing"
	"time"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/recurrence"
)

func solidifyWindow() (time.Time, time.Time) {
	return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
}

func TestSolidifyCreatesInstances(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")
	tpl := confirmedTemplate(cat)
	if err := svc.CreateTemplate(tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	// Daily at 09:00-10:00: the 10th, 11th and 12th. The 13th's
	// occurrence does not end before the window and waits.
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	list, err := svc.ListCommitments("owner-1", from, to)
	if err != nil {
		t.Fatalf("ListCommitments: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 commitments, got %d", len(list))
	}
	for _, c := range list {
		if c.Provisional {
			t.Fatalf("expected confirmed instance, got provisional %s", c.ID)
		}
		if c.TemplateID == nil || *c.TemplateID != tpl.ID {
			t.Fatalf("instance %s not linked to template", c.ID)
		}
		if c.StartAt.Hour() != 9 || c.EndAt.Hour() != 10 {
			t.Fatalf("instance %s has span %v-%v", c.ID, c.StartAt, c.EndAt)
		}
	}
}

func TestSolidifyIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")
	if err := svc.CreateTemplate(confirmedTemplate(cat)); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	from, to := solidifyWindow()
	if _, err := svc.Solidify("owner-1", from, to, time.UTC); err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	again, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify second run: %v", err)
	}
	if again != 0 {
		t.Fatalf("second run created %d, want 0", again)
	}

	// An overlapping window only fills the uncovered dates.
	wider, err := svc.Solidify("owner-1", from, to.AddDate(0, 0, 2), time.UTC)
	if err != nil {
		t.Fatalf("Solidify wider window: %v", err)
	}
	if wider != 2 {
		t.Fatalf("wider run created %d, want 2", wider)
	}
}

func TestSolidifyDeferredBoundaryOccurrence(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")
	if err := svc.CreateTemplate(confirmedTemplate(cat)); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	// Window closes at 09:30 on the 12th, mid-occurrence. The 12th's
	// instance must wait for a later pass that fully contains it.
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	later, err := svc.Solidify("owner-1", from, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("Solidify later pass: %v", err)
	}
	if later != 1 {
		t.Fatalf("later pass created %d, want 1", later)
	}
}

func TestSolidifyHonorsSkipDays(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")
	tpl := confirmedTemplate(cat)
	tpl.SkipDays = []string{"2024-03-11"}
	if err := svc.CreateTemplate(tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	list, _ := svc.ListCommitments("owner-1", from, to)
	for _, c := range list {
		if models.LocalDayKey(*c.StartAt, time.UTC) == "2024-03-11" {
			t.Fatal("skip day was materialized")
		}
	}
}

func TestSolidifyProvisionalOnConflict(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")
	if err := svc.CreateTemplate(confirmedTemplate(cat)); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	// The 11th's 09:00-10:00 slot is half-occupied already.
	blocker := confirmedCommitment("Dentist", cat,
		time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 10, 30, 0, 0, time.UTC))
	if err := svc.CreateCommitment(blocker); err != nil {
		t.Fatalf("CreateCommitment: %v", err)
	}

	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	list, _ := svc.ListCommitments("owner-1", from, to)
	var provisional, confirmed int
	for _, c := range list {
		if c.ID == blocker.ID {
			continue
		}
		day := models.LocalDayKey(*c.StartAt, time.UTC)
		if c.Provisional {
			provisional++
			if day != "2024-03-11" {
				t.Fatalf("unexpected provisional instance on %s", day)
			}
		} else {
			confirmed++
		}
	}
	if provisional != 1 || confirmed != 2 {
		t.Fatalf("provisional = %d confirmed = %d, want 1 and 2", provisional, confirmed)
	}
}

func TestSolidifyDefaultCategory(t *testing.T) {
	svc, st := newTestService(t)

	// A template persisted without a category (possible through direct
	// storage paths) falls back to the owner's default category.
	start := recurrence.Date(2024, time.March, 1)
	tpl := &models.RecurringTemplate{
		OwnerID:    "owner-1",
		Name:       strPtr("Morning run"),
		StartClock: clockPtr(9, 0),
		EndClock:   clockPtr(10, 0),
		StartDate:  &start,
		Rule:       "FREQ=DAILY",
	}
	if err := st.CreateTemplate(tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	cats, err := svc.ListCategories("owner-1")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	var defaultID string
	for _, c := range cats {
		if c.Name == models.DefaultCategoryName {
			defaultID = c.ID
		}
	}
	if defaultID == "" {
		t.Fatal("default category was not created")
	}

	list, _ := svc.ListCommitments("owner-1", from, to)
	for _, c := range list {
		if c.CategoryID == nil || *c.CategoryID != defaultID {
			t.Fatalf("instance %s not in default category", c.ID)
		}
	}
}

func TestSolidifyRespectsTemplateBounds(t *testing.T) {
	svc, _ := newTestService(t)
	cat := testCategory(t, svc, "owner-1")

	tpl := confirmedTemplate(cat)
	endDate := recurrence.Date(2024, time.March, 11)
	tpl.EndDate = &endDate
	if err := svc.CreateTemplate(tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	// Pattern ends on the 11th: only the 10th and 11th materialize.
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
}

func TestSolidifyNoTemplates(t *testing.T) {
	svc, _ := newTestService(t)
	from, to := solidifyWindow()
	created, err := svc.Solidify("owner-1", from, to, time.UTC)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
}
