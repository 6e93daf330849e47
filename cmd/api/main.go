// Command api serves the booking sync HTTP API and, when enabled, runs the
// periodic batch scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/booking-sync-backend/internal/cli"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/logging"
)

func main() {
	flags, err := cli.ParseServeFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg := config.LoadOrEnv_WithPath(flags.ConfigPath)
	if flags.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLogger(cfg.Observability.Logging)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
