package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/tempora/internal/clock"
	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/store"
	"github.com/fentz26/tempora/internal/timetrack"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "tempora.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, clock.Fixed{At: testNow}, timetrack.New(st), time.UTC)
	return NewServer(svc, st, "127.0.0.1:0")
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.handleHealth, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var health HealthResponse
	decode(t, w, &health)
	if !health.OK || health.DB != "ok" || health.Version != Version {
		t.Fatalf("unexpected health payload: %+v", health)
	}

	if w := doJSON(t, srv.handleHealth, http.MethodPost, "/health", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health status = %d, want 405", w.Code)
	}
}

func TestEventEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var cat models.Category
	w := doJSON(t, srv.handleCategories, http.MethodPost, "/categories",
		createCategoryRequest{OwnerID: "owner-1", Name: "Work"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create category status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &cat)

	// Create a draft with nothing but an owner.
	var draft models.Commitment
	w = doJSON(t, srv.handleEvents, http.MethodPost, "/events",
		models.Commitment{OwnerID: "owner-1", Provisional: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("create draft status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &draft)
	if draft.ID == "" {
		t.Fatal("expected draft to be assigned an id")
	}

	// Confirming the bare draft fails with 422 and leaves it provisional.
	w = doJSON(t, srv.handleEventByID, http.MethodPost, "/events/"+draft.ID+"/confirm", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm bare draft status = %d, want 422", w.Code)
	}

	// Fill it in and confirm.
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	draft.Name = strPtr("Standup")
	draft.StartAt = &start
	draft.EndAt = timePtr(start.Add(time.Hour))
	draft.CategoryID = &cat.ID
	w = doJSON(t, srv.handleEventByID, http.MethodPut, "/events/"+draft.ID, draft)
	if w.Code != http.StatusOK {
		t.Fatalf("update draft status = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv.handleEventByID, http.MethodPost, "/events/"+draft.ID+"/confirm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", w.Code, w.Body.String())
	}
	var confirmed models.Commitment
	decode(t, w, &confirmed)
	if confirmed.Provisional {
		t.Fatal("expected confirmed commitment")
	}

	// Confirming twice is a 409.
	w = doJSON(t, srv.handleEventByID, http.MethodPost, "/events/"+draft.ID+"/confirm", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second confirm status = %d, want 409", w.Code)
	}

	// An overlapping confirmed create is a 409 naming the blocker.
	w = doJSON(t, srv.handleEvents, http.MethodPost, "/events", models.Commitment{
		OwnerID:    "owner-1",
		Name:       strPtr("Review"),
		StartAt:    timePtr(start.Add(30 * time.Minute)),
		EndAt:      timePtr(start.Add(90 * time.Minute)),
		CategoryID: &cat.ID,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("conflicting create status = %d, want 409", w.Code)
	}
	var conflictBody struct {
		Error        string             `json:"error"`
		ConflictWith *models.Commitment `json:"conflict_with"`
	}
	decode(t, w, &conflictBody)
	if conflictBody.ConflictWith == nil || conflictBody.ConflictWith.ID != draft.ID {
		t.Fatalf("expected conflict payload naming %s, got %+v", draft.ID, conflictBody)
	}

	// List, get, delete, then 404.
	window := fmt.Sprintf("from=%s&to=%s",
		start.Add(-time.Hour).Format(time.RFC3339), start.Add(2*time.Hour).Format(time.RFC3339))
	w = doJSON(t, srv.handleEvents, http.MethodGet, "/events?owner=owner-1&"+window, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", w.Code, w.Body.String())
	}
	var list []models.Commitment
	decode(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 event, got %d", len(list))
	}

	w = doJSON(t, srv.handleEventByID, http.MethodGet, "/events/"+draft.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	w = doJSON(t, srv.handleEventByID, http.MethodDelete, "/events/"+draft.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, srv.handleEventByID, http.MethodGet, "/events/"+draft.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", w.Code)
	}
}

func TestExportICS(t *testing.T) {
	srv := newTestServer(t)

	var cat models.Category
	decode(t, doJSON(t, srv.handleCategories, http.MethodPost, "/categories",
		createCategoryRequest{OwnerID: "owner-1", Name: "Work"}), &cat)

	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	w := doJSON(t, srv.handleEvents, http.MethodPost, "/events", models.Commitment{
		OwnerID:    "owner-1",
		Name:       strPtr("Standup"),
		StartAt:    &start,
		EndAt:      timePtr(start.Add(time.Hour)),
		CategoryID: &cat.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}

	target := fmt.Sprintf("/events/export.ics?owner=owner-1&from=%s&to=%s",
		start.Add(-time.Hour).Format(time.RFC3339), start.Add(2*time.Hour).Format(time.RFC3339))
	w = doJSON(t, srv.handleEventByID, http.MethodGet, target, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/calendar" {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:Standup"} {
		if !strings.Contains(body, want) {
			t.Fatalf("export missing %q:\n%s", want, body)
		}
	}
}

func TestTemplateAndSolidifyEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var cat models.Category
	decode(t, doJSON(t, srv.handleCategories, http.MethodPost, "/categories",
		createCategoryRequest{OwnerID: "owner-1", Name: "Health"}), &cat)

	startDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var tpl models.RecurringTemplate
	w := doJSON(t, srv.handleTemplates, http.MethodPost, "/templates", models.RecurringTemplate{
		OwnerID:    "owner-1",
		Name:       strPtr("Morning run"),
		StartClock: clockPtr(9, 0),
		EndClock:   clockPtr(10, 0),
		StartDate:  &startDate,
		CategoryID: &cat.ID,
		Rule:       "FREQ=DAILY",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create template status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &tpl)

	// Add a skip day over the API.
	w = doJSON(t, srv.handleTemplateByID, http.MethodPost, "/templates/"+tpl.ID+"/skipdays",
		skipDaysRequest{Add: []string{"2024-03-11"}})
	if w.Code != http.StatusOK {
		t.Fatalf("skipdays status = %d: %s", w.Code, w.Body.String())
	}
	var updated models.RecurringTemplate
	decode(t, w, &updated)
	if len(updated.SkipDays) != 1 || updated.SkipDays[0] != "2024-03-11" {
		t.Fatalf("skip days = %v", updated.SkipDays)
	}

	// Solidify three days; the skipped date stays empty.
	w = doJSON(t, srv.handleSolidify, http.MethodPost, "/solidify", solidifyRequest{
		OwnerID: "owner-1",
		From:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("solidify status = %d: %s", w.Code, w.Body.String())
	}
	var solidified solidifyResponse
	decode(t, w, &solidified)
	if solidified.Created != 2 {
		t.Fatalf("solidify created = %d, want 2", solidified.Created)
	}

	// Rename through PUT and check the propagation count surfaces.
	updated.Name = strPtr("Evening run")
	w = doJSON(t, srv.handleTemplateByID, http.MethodPut, "/templates/"+tpl.ID, updated)
	if w.Code != http.StatusOK {
		t.Fatalf("update template status = %d: %s", w.Code, w.Body.String())
	}
	var updResp templateUpdateResponse
	decode(t, w, &updResp)
	if updResp.Template == nil || *updResp.Template.Name != "Evening run" {
		t.Fatalf("unexpected update payload: %+v", updResp)
	}

	w = doJSON(t, srv.handleTemplateByID, http.MethodDelete, "/templates/"+tpl.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete template status = %d", w.Code)
	}
	w = doJSON(t, srv.handleTemplateByID, http.MethodGet, "/templates/"+tpl.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted template status = %d, want 404", w.Code)
	}
}

func TestSolidifyEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.handleSolidify, http.MethodPost, "/solidify", solidifyRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing owner status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv.handleSolidify, http.MethodPost, "/solidify", solidifyRequest{
		OwnerID: "owner-1", Zone: "Not/AZone",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad zone status = %d, want 400", w.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.handleCategories, http.MethodPost, "/categories",
		createCategoryRequest{OwnerID: "owner-1", Name: "Work"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, srv.handleCategories, http.MethodGet, "/categories?owner=owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var cats []models.Category
	decode(t, w, &cats)
	if len(cats) != 1 || cats[0].Name != "Work" {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	w = doJSON(t, srv.handleCategories, http.MethodGet, "/categories?owner=nobody", nil)
	var empty []models.Category
	decode(t, w, &empty)
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %+v", empty)
	}
}
