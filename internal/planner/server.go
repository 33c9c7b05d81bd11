package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/fentz26/tempora/internal/models"
	"github.com/fentz26/tempora/internal/store"
)

// Version is the daemon version reported by /health.
const Version = "0.3.0"

// Server provides the HTTP API for Tempora.
type Server struct {
	service *Service
	store   *store.Store
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, st *store.Store, addr string) *Server {
	return &Server{
		service: service,
		store:   st,
		addr:    addr,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/events/", s.handleEventByID)
	mux.HandleFunc("/templates", s.handleTemplates)
	mux.HandleFunc("/templates/", s.handleTemplateByID)
	mux.HandleFunc("/categories", s.handleCategories)
	mux.HandleFunc("/timebuckets", s.handleTimeBuckets)
	mux.HandleFunc("/solidify", s.handleSolidify)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Tempora daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		writeJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

// writeError maps engine error kinds to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		missing   *MissingFieldError
		timeRange *TimeRangeError
		conflict  *ConflictError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyConfirmed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &conflict):
		writeJSONStatus(w, http.StatusConflict, map[string]interface{}{
			"error":         conflict.Error(),
			"conflict_with": conflict.With,
		})
	case errors.As(err, &missing), errors.As(err, &timeRange),
		errors.Is(err, ErrCategoryOwnership):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// zoneFor resolves the zone query parameter, defaulting to the service's
// configured owner zone.
func (s *Server) zoneFor(r *http.Request) (*time.Location, error) {
	name := r.URL.Query().Get("zone")
	if name == "" {
		return s.service.Zone(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown zone %q", name)
	}
	return loc, nil
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
	}
	return from, to, nil
}

// --- Event Handlers ---

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createEvent(w, r)
	case http.MethodGet:
		s.listEvents(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/events/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "event id required", http.StatusBadRequest)
		return
	}

	if parts[0] == "export.ics" && r.Method == http.MethodGet {
		s.exportICS(w, r)
		return
	}

	id := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getEvent(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		s.updateEvent(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteEvent(w, r, id)
	case action == "confirm" && r.Method == http.MethodPost:
		s.confirmEvent(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var c models.Commitment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if c.OwnerID == "" {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}
	c.ID = ""

	if err := s.service.CreateCommitment(&c); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.service.ListCommitments(owner, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.Commitment{}
	}
	writeJSON(w, events)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request, id string) {
	c, err := s.service.GetCommitment(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	writeJSON(w, c)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, id string) {
	var c models.Commitment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c.ID = id

	if err := s.service.UpdateCommitment(&c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteCommitment(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"deleted"}`))
}

func (s *Server) confirmEvent(w http.ResponseWriter, r *http.Request, id string) {
	c, err := s.service.ConfirmCommitment(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c)
}

// exportICS serves the owner's confirmed commitments in a window as an
// iCalendar feed.
func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.service.ListCommitments(owner, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Tempora//EN")

	for _, c := range events {
		if c.Provisional || c.StartAt == nil {
			continue
		}
		ev := cal.AddEvent(c.ID + "@tempora")
		ev.SetStartAt(c.StartAt.UTC())
		if c.EndAt != nil {
			ev.SetEndAt(c.EndAt.UTC())
		}
		if c.Name != nil {
			ev.SetSummary(*c.Name)
		}
		if c.Description != "" {
			ev.SetDescription(c.Description)
		}
		ev.SetDtStampTime(time.Now().UTC())
	}

	w.Header().Set("Content-Type", "text/calendar")
	w.Write([]byte(cal.Serialize()))
}

// --- Template Handlers ---

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTemplate(w, r)
	case http.MethodGet:
		s.listTemplates(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner required", http.StatusBadRequest)
		return
	}
	templates, err := s.service.ListTemplates(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []models.RecurringTemplate{}
	}
	writeJSON(w, templates)
}

func (s *Server) handleTemplateByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/templates/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "template id required", http.StatusBadRequest)
		return
	}

	id := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTemplate(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		s.updateTemplate(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteTemplate(w, r, id)
	case action == "confirm" && r.Method == http.MethodPost:
		s.confirmTemplate(w, r, id)
	case action == "skipdays" && r.Method == http.MethodPost:
		s.editSkipDays(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl models.RecurringTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if tpl.OwnerID == "" {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}
	tpl.ID = ""

	if err := s.service.CreateTemplate(&tpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, tpl)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request, id string) {
	tpl, err := s.service.GetTemplate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if tpl == nil {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, tpl)
}

type templateUpdateResponse struct {
	Template   *models.RecurringTemplate `json:"template"`
	Propagated int                       `json:"propagated"`
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request, id string) {
	var tpl models.RecurringTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tpl.ID = id

	zone, err := s.zoneFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	propagated, err := s.service.UpdateTemplate(&tpl, zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, templateUpdateResponse{Template: &tpl, Propagated: propagated})
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteTemplate(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"deleted"}`))
}

func (s *Server) confirmTemplate(w http.ResponseWriter, r *http.Request, id string) {
	tpl, err := s.service.ConfirmTemplate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, tpl)
}

type skipDaysRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (s *Server) editSkipDays(w http.ResponseWriter, r *http.Request, id string) {
	var req skipDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	zone, err := s.zoneFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.Add) > 0 {
		if err := s.service.AddSkipDays(id, req.Add, zone); err != nil {
			writeError(w, err)
			return
		}
	}
	if len(req.Remove) > 0 {
		if err := s.service.RemoveSkipDays(id, req.Remove, zone); err != nil {
			writeError(w, err)
			return
		}
	}

	tpl, err := s.service.GetTemplate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, tpl)
}

// --- Category, Bucket and Solidify Handlers ---

type createCategoryRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createCategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cat, err := s.service.CreateCategory(req.OwnerID, req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, cat)
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		cats, err := s.service.ListCategories(owner)
		if err != nil {
			writeError(w, err)
			return
		}
		if cats == nil {
			cats = []models.Category{}
		}
		writeJSON(w, cats)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTimeBuckets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	owner := r.URL.Query().Get("owner")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if owner == "" || from == "" || to == "" {
		http.Error(w, "owner, from and to required", http.StatusBadRequest)
		return
	}

	buckets, err := s.service.TimeBuckets(owner, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if buckets == nil {
		buckets = []models.TimeBucket{}
	}
	writeJSON(w, buckets)
}

type solidifyRequest struct {
	OwnerID string    `json:"owner_id"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Zone    string    `json:"zone,omitempty"`
}

type solidifyResponse struct {
	Created int `json:"created"`
}

func (s *Server) handleSolidify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req solidifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	zone := s.service.Zone()
	if req.Zone != "" {
		loc, err := time.LoadLocation(req.Zone)
		if err != nil {
			http.Error(w, fmt.Sprintf("unknown zone %q", req.Zone), http.StatusBadRequest)
			return
		}
		zone = loc
	}

	created, err := s.service.Solidify(req.OwnerID, req.From, req.To, zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, solidifyResponse{Created: created})
}
