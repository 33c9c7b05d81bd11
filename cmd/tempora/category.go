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

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryAdd,
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE:  runCategoryList,
}

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Show tracked minutes per category and day",
	RunE:  runBuckets,
}

var (
	bucketsFrom string
	bucketsTo   string
)

func init() {
	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd)

	today := time.Now().Format("2006-01-02")
	weekAgo := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	bucketsCmd.Flags().StringVar(&bucketsFrom, "from", weekAgo, "First day (2006-01-02)")
	bucketsCmd.Flags().StringVar(&bucketsTo, "to", today, "Last day (2006-01-02)")
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"owner_id": ownerID,
		"name":     args[0],
	}
	resp, err := apiPost("/categories", body)
	if err != nil {
		return err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created category: %s\n", result["id"])
	return nil
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/categories?owner=" + url.QueryEscape(ownerID))
	if err != nil {
		return err
	}

	var cats []map[string]interface{}
	if err := json.Unmarshal(resp, &cats); err != nil {
		return err
	}
	if len(cats) == 0 {
		fmt.Println("No categories found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s\n", c["id"], c["name"])
	}
	w.Flush()
	return nil
}

func runBuckets(cmd *cobra.Command, args []string) error {
	query := fmt.Sprintf("owner=%s&from=%s&to=%s",
		url.QueryEscape(ownerID), url.QueryEscape(bucketsFrom), url.QueryEscape(bucketsTo))
	resp, err := apiGet("/timebuckets?" + query)
	if err != nil {
		return err
	}

	var buckets []map[string]interface{}
	if err := json.Unmarshal(resp, &buckets); err != nil {
		return err
	}
	if len(buckets) == 0 {
		fmt.Println("No tracked time in window")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tCATEGORY\tMINUTES")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\t%v\n", b["day"], b["category_id"], b["minutes"])
	}
	w.Flush()
	return nil
}
