// Command sync reconciles local bookings with their providers from the
// command line.
//
// Usage:
//
//	sync -booking BK-1001 [-force] [-services]
//	sync [-status pending|synced|error] [-provider duffel] [-stale 30m] [-limit 50]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/booking-sync-backend/internal/cli"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/logging"
)

func main() {
	flags, err := cli.ParseSyncFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.LoadOrEnv_WithPath(flags.ConfigPath)
	if flags.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	// results go to stdout, logs to stderr
	logger := logging.NewLoggerTo(os.Stderr, cfg.Observability.Logging)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	if !flags.JSON {
		cli.PrintHeader(os.Stdout, mode(flags))
	}
	err = cli.RunSync(ctx, app.Orchestrator, flags, os.Stdout, logger)
	if closeErr := app.Close(); closeErr != nil {
		logger.Error("failed to close resources", "error", closeErr)
	}
	if err != nil {
		logger.Error("sync finished with errors", "error", err)
		os.Exit(1)
	}
}

func mode(flags cli.SyncFlags) string {
	if flags.Booking != "" {
		return "single booking " + flags.Booking
	}
	return "batch"
}
