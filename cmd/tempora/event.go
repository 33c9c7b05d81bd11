package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new event",
	RunE:  runEventAdd,
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events in a window",
	RunE:  runEventList,
}

var eventShowCmd = &cobra.Command{
	Use:   "show [event-id]",
	Short: "Show event details",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventShow,
}

var eventConfirmCmd = &cobra.Command{
	Use:   "confirm [event-id]",
	Short: "Confirm a draft event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventConfirm,
}

var eventDoneCmd = &cobra.Command{
	Use:   "done [event-id]",
	Short: "Mark an event completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventDone,
}

var eventRmCmd = &cobra.Command{
	Use:   "rm [event-id]",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventRm,
}

var eventExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export confirmed events as iCalendar to stdout",
	RunE:  runEventExport,
}

var (
	eventName     string
	eventStart    string
	eventEnd      string
	eventCategory string
	eventDesc     string
	eventDraft    bool
	windowFrom    string
	windowTo      string
)

func init() {
	eventCmd.AddCommand(eventAddCmd, eventListCmd, eventShowCmd, eventConfirmCmd, eventDoneCmd, eventRmCmd, eventExportCmd)

	eventAddCmd.Flags().StringVar(&eventName, "name", "", "Event name")
	eventAddCmd.Flags().StringVar(&eventStart, "start", "", "Start time (RFC3339 or '2006-01-02 15:04')")
	eventAddCmd.Flags().StringVar(&eventEnd, "end", "", "End time; omit for an open-ended event")
	eventAddCmd.Flags().StringVar(&eventCategory, "category", "", "Category ID")
	eventAddCmd.Flags().StringVar(&eventDesc, "desc", "", "Description")
	eventAddCmd.Flags().BoolVar(&eventDraft, "draft", false, "Create as a draft (skips validation and conflict checks)")

	for _, c := range []*cobra.Command{eventListCmd, eventExportCmd} {
		c.Flags().StringVar(&windowFrom, "from", "", "Window start (default now)")
		c.Flags().StringVar(&windowTo, "to", "", "Window end (default one week out)")
	}
}

// parseFlagTime accepts RFC3339 or a local "2006-01-02 15:04" form.
func parseFlagTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC3339 or '2006-01-02 15:04')", s)
	}
	return t, nil
}

func windowQuery() (string, error) {
	from := time.Now()
	if windowFrom != "" {
		t, err := parseFlagTime(windowFrom)
		if err != nil {
			return "", err
		}
		from = t
	}
	to := from.AddDate(0, 0, 7)
	if windowTo != "" {
		t, err := parseFlagTime(windowTo)
		if err != nil {
			return "", err
		}
		to = t
	}
	return fmt.Sprintf("owner=%s&from=%s&to=%s",
		url.QueryEscape(ownerID),
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339))), nil
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"owner_id":    ownerID,
		"provisional": eventDraft,
	}
	if eventName != "" {
		body["name"] = eventName
	}
	if eventDesc != "" {
		body["description"] = eventDesc
	}
	if eventCategory != "" {
		body["category_id"] = eventCategory
	}
	if eventStart != "" {
		t, err := parseFlagTime(eventStart)
		if err != nil {
			return err
		}
		body["start_at"] = t.Format(time.RFC3339)
	}
	if eventEnd != "" {
		t, err := parseFlagTime(eventEnd)
		if err != nil {
			return err
		}
		body["end_at"] = t.Format(time.RFC3339)
	}

	resp, err := apiPost("/events", body)
	if err != nil {
		return err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created event: %s\n", result["id"])
	return nil
}

func runEventList(cmd *cobra.Command, args []string) error {
	query, err := windowQuery()
	if err != nil {
		return err
	}
	resp, err := apiGet("/events?" + query)
	if err != nil {
		return err
	}

	var events []map[string]interface{}
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tSTATE")
	for _, e := range events {
		name := ""
		if n, ok := e["name"].(string); ok {
			name = truncate(n, 40)
		}
		start := ""
		if s, ok := e["start_at"].(string); ok {
			start = s
		}
		end := "open"
		if s, ok := e["end_at"].(string); ok {
			end = s
		}
		state := "confirmed"
		if p, ok := e["provisional"].(bool); ok && p {
			state = "draft"
		}
		if c, ok := e["completed"].(bool); ok && c {
			state = "done"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncateID(e["id"].(string)), name, start, end, state)
	}
	w.Flush()
	return nil
}

func runEventShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/events/" + args[0])
	if err != nil {
		return err
	}
	var e map[string]interface{}
	if err := json.Unmarshal(resp, &e); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", e["id"])
	fmt.Printf("Name:        %v\n", e["name"])
	fmt.Printf("Start:       %v\n", e["start_at"])
	if end, ok := e["end_at"]; ok {
		fmt.Printf("End:         %v\n", end)
	} else {
		fmt.Printf("End:         open-ended\n")
	}
	fmt.Printf("Category:    %v\n", e["category_id"])
	if d, ok := e["description"].(string); ok && d != "" {
		fmt.Printf("Description: %s\n", d)
	}
	fmt.Printf("Provisional: %v\n", e["provisional"])
	fmt.Printf("Completed:   %v\n", e["completed"])
	if t, ok := e["template_id"].(string); ok {
		fmt.Printf("Template:    %s\n", t)
	}
	fmt.Printf("Created:     %v\n", e["created_at"])
	fmt.Printf("Updated:     %v\n", e["updated_at"])
	return nil
}

func runEventConfirm(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/events/"+args[0]+"/confirm", nil); err != nil {
		return err
	}
	fmt.Printf("Confirmed event %s\n", args[0])
	return nil
}

func runEventDone(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/events/" + args[0])
	if err != nil {
		return err
	}
	var e map[string]interface{}
	if err := json.Unmarshal(resp, &e); err != nil {
		return err
	}
	e["completed"] = true

	if _, err := apiPut("/events/"+args[0], e); err != nil {
		return err
	}
	fmt.Printf("Completed event %s\n", args[0])
	return nil
}

func runEventRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/events/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted event %s\n", args[0])
	return nil
}

func runEventExport(cmd *cobra.Command, args []string) error {
	query, err := windowQuery()
	if err != nil {
		return err
	}
	resp, err := apiGet("/events/export.ics?" + query)
	if err != nil {
		return err
	}
	os.Stdout.Write(resp)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
