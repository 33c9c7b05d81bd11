package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var solidifyCmd = &cobra.Command{
	Use:   "solidify",
	Short: "Materialize recurring templates into events",
	RunE:  runSolidify,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health",
	RunE:  runStatus,
}

var (
	solidifyFrom string
	solidifyTo   string
	solidifyZone string
)

func init() {
	solidifyCmd.Flags().StringVar(&solidifyFrom, "from", "", "Window start (default now)")
	solidifyCmd.Flags().StringVar(&solidifyTo, "to", "", "Window end (default two weeks out)")
	solidifyCmd.Flags().StringVar(&solidifyZone, "zone", "", "IANA zone for day boundaries (default daemon zone)")
}

func runSolidify(cmd *cobra.Command, args []string) error {
	from := time.Now()
	if solidifyFrom != "" {
		t, err := parseFlagTime(solidifyFrom)
		if err != nil {
			return err
		}
		from = t
	}
	to := from.AddDate(0, 0, 14)
	if solidifyTo != "" {
		t, err := parseFlagTime(solidifyTo)
		if err != nil {
			return err
		}
		to = t
	}

	body := map[string]interface{}{
		"owner_id": ownerID,
		"from":     from.Format(time.RFC3339),
		"to":       to.Format(time.RFC3339),
	}
	if solidifyZone != "" {
		body["zone"] = solidifyZone
	}

	resp, err := apiPost("/solidify", body)
	if err != nil {
		return err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created %v events\n", result["created"])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if err != nil {
		return err
	}
	fmt.Printf("Daemon:  ok\n")
	fmt.Printf("DB:      %s\n", health.DB)
	fmt.Printf("Version: %s\n", health.Version)
	fmt.Printf("Time:    %s\n", health.Time)
	return nil
}
