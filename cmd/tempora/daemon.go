package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/fentz26/tempora/internal/clock"
	"github.com/fentz26/tempora/internal/config"
	"github.com/fentz26/tempora/internal/planner"
	"github.com/fentz26/tempora/internal/store"
	"github.com/fentz26/tempora/internal/timetrack"
)

var (
	configPath string
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Tempora daemon",
	Long:  `Starts the Tempora daemon which provides the HTTP API and the scheduled materialization of recurring templates.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Tempora daemon...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	zone, err := cfg.Location()
	if err != nil {
		return err
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}

	service := planner.NewService(s, clock.System{}, timetrack.New(s), zone)
	server := planner.NewServer(service, s, cfg.Listen)

	solidifyAll := func() {
		owners, err := s.OwnersWithTemplates()
		if err != nil {
			log.Printf("Solidify pass: listing owners: %v", err)
			return
		}
		from := time.Now().In(zone)
		to := from.AddDate(0, 0, cfg.HorizonDays)
		for _, owner := range owners {
			if _, err := service.Solidify(owner, from, to, zone); err != nil {
				log.Printf("Solidify pass for %s: %v", owner, err)
			}
		}
	}

	// One pass at startup, then on the configured schedule.
	solidifyAll()
	c := cron.New()
	if _, err := c.AddFunc(cfg.SolidifyCron, solidifyAll); err != nil {
		s.Close()
		return err
	}
	c.Start()
	defer c.Stop()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
