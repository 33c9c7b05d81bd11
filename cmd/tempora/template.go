package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage recurring templates",
}

var templateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring template",
	RunE:  runTemplateAdd,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show [template-id]",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateConfirmCmd = &cobra.Command{
	Use:   "confirm [template-id]",
	Short: "Confirm a draft template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateConfirm,
}

var templateRmCmd = &cobra.Command{
	Use:   "rm [template-id]",
	Short: "Delete a template (solidified events remain)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateRm,
}

var templateSkipCmd = &cobra.Command{
	Use:   "skip [template-id]",
	Short: "Add or remove skip days",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateSkip,
}

var (
	tplName       string
	tplStartClock string
	tplEndClock   string
	tplStartDate  string
	tplEndDate    string
	tplRule       string
	tplCategory   string
	tplDesc       string
	tplDraft      bool
	skipAdd       string
	skipRemove    string
)

func init() {
	templateCmd.AddCommand(templateAddCmd, templateListCmd, templateShowCmd, templateConfirmCmd, templateRmCmd, templateSkipCmd)

	templateAddCmd.Flags().StringVar(&tplName, "name", "", "Template name")
	templateAddCmd.Flags().StringVar(&tplStartClock, "start-time", "", "Daily start time (HH:MM)")
	templateAddCmd.Flags().StringVar(&tplEndClock, "end-time", "", "Daily end time (HH:MM)")
	templateAddCmd.Flags().StringVar(&tplStartDate, "start-date", "", "Pattern start date (2006-01-02)")
	templateAddCmd.Flags().StringVar(&tplEndDate, "end-date", "", "Pattern end date; omit for indefinite")
	templateAddCmd.Flags().StringVar(&tplRule, "rule", "", "Recurrence rule (e.g. 'FREQ=WEEKLY;BYDAY=MO,WE')")
	templateAddCmd.Flags().StringVar(&tplCategory, "category", "", "Category ID")
	templateAddCmd.Flags().StringVar(&tplDesc, "desc", "", "Description")
	templateAddCmd.Flags().BoolVar(&tplDraft, "draft", false, "Create as a draft")

	templateSkipCmd.Flags().StringVar(&skipAdd, "add", "", "Comma-separated dates to skip (2006-01-02)")
	templateSkipCmd.Flags().StringVar(&skipRemove, "remove", "", "Comma-separated dates to reintroduce")
}

func clockBody(s string) (map[string]int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("cannot parse time of day %q (use HH:MM)", s)
	}
	return map[string]int{"hour": hour, "minute": minute}, nil
}

func runTemplateAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"owner_id":    ownerID,
		"provisional": tplDraft,
	}
	if tplName != "" {
		body["name"] = tplName
	}
	if tplDesc != "" {
		body["description"] = tplDesc
	}
	if tplCategory != "" {
		body["category_id"] = tplCategory
	}
	if tplRule != "" {
		body["rule"] = tplRule
	}
	if tplStartClock != "" {
		c, err := clockBody(tplStartClock)
		if err != nil {
			return err
		}
		body["start_clock"] = c
	}
	if tplEndClock != "" {
		c, err := clockBody(tplEndClock)
		if err != nil {
			return err
		}
		body["end_clock"] = c
	}
	if tplStartDate != "" {
		body["start_date"] = tplStartDate + "T00:00:00Z"
	}
	if tplEndDate != "" {
		body["end_date"] = tplEndDate + "T00:00:00Z"
	}

	resp, err := apiPost("/templates", body)
	if err != nil {
		return err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created template: %s\n", result["id"])
	return nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/templates?owner=" + url.QueryEscape(ownerID))
	if err != nil {
		return err
	}

	var templates []map[string]interface{}
	if err := json.Unmarshal(resp, &templates); err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Println("No templates found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRULE\tSTATE")
	for _, t := range templates {
		name := ""
		if n, ok := t["name"].(string); ok {
			name = truncate(n, 40)
		}
		rule := ""
		if r, ok := t["rule"].(string); ok {
			rule = r
		}
		state := "confirmed"
		if p, ok := t["provisional"].(bool); ok && p {
			state = "draft"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncateID(t["id"].(string)), name, rule, state)
	}
	w.Flush()
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/templates/" + args[0])
	if err != nil {
		return err
	}
	var t map[string]interface{}
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", t["id"])
	fmt.Printf("Name:        %v\n", t["name"])
	fmt.Printf("Rule:        %v\n", t["rule"])
	fmt.Printf("Start date:  %v\n", t["start_date"])
	if end, ok := t["end_date"]; ok {
		fmt.Printf("End date:    %v\n", end)
	}
	fmt.Printf("Category:    %v\n", t["category_id"])
	fmt.Printf("Provisional: %v\n", t["provisional"])
	if days, ok := t["skip_days"].([]interface{}); ok && len(days) > 0 {
		strs := make([]string, 0, len(days))
		for _, d := range days {
			strs = append(strs, fmt.Sprint(d))
		}
		fmt.Printf("Skip days:   %s\n", strings.Join(strs, ", "))
	}
	return nil
}

func runTemplateConfirm(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/templates/"+args[0]+"/confirm", nil); err != nil {
		return err
	}
	fmt.Printf("Confirmed template %s\n", args[0])
	return nil
}

func runTemplateRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/templates/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted template %s\n", args[0])
	return nil
}

func splitDays(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runTemplateSkip(cmd *cobra.Command, args []string) error {
	add := splitDays(skipAdd)
	remove := splitDays(skipRemove)
	if len(add) == 0 && len(remove) == 0 {
		return fmt.Errorf("nothing to do: pass --add and/or --remove")
	}

	body := map[string]interface{}{"add": add, "remove": remove}
	if _, err := apiPost("/templates/"+args[0]+"/skipdays", body); err != nil {
		return err
	}
	if len(add) > 0 {
		fmt.Printf("Added skip days: %s\n", strings.Join(add, ", "))
	}
	if len(remove) > 0 {
		fmt.Printf("Removed skip days: %s\n", strings.Join(remove, ", "))
	}
	return nil
}
