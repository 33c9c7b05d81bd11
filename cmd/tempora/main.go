package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tempora",
	Short: "Tempora - personal calendar daemon and CLI",
	Long: `Tempora plans personal commitments: one-off and recurring events,
conflict detection, draft confirmation and per-category time tracking.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr string
	ownerID string
)

func init() {
	defaultOwner := os.Getenv("TEMPORA_OWNER")
	if defaultOwner == "" {
		defaultOwner = os.Getenv("USER")
	}
	if defaultOwner == "" {
		defaultOwner = "default"
	}

	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7433", "API server address")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", defaultOwner, "Owner whose calendar to operate on")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(bucketsCmd)
	rootCmd.AddCommand(solidifyCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
