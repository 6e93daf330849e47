package cli

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/booking-sync-backend/internal/api"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/scheduler"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

const (
	jobCleanupInterval = 5 * time.Minute
	shutdownTimeout    = 30 * time.Second
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags(args []string, output io.Writer) (ServeFlags, error) {
	var flags ServeFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigPath, "config", "config.yaml", "Configuration file path (falls back to environment)")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides api.port)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	err := fs.Parse(args)
	return flags, err
}

// APIConfig maps the api section of the config to server settings
func APIConfig(cfg *config.Config, flags ServeFlags) api.Config {
	apiCfg := api.DefaultConfig()
	if cfg.API.Port > 0 {
		apiCfg.Port = cfg.API.Port
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}
	if len(cfg.API.AllowedOrigins) > 0 {
		apiCfg.AllowedOrigins = cfg.API.AllowedOrigins
	}
	return apiCfg
}

// NewScheduler builds the periodic batch scheduler, or nil when disabled
func NewScheduler(cfg *config.Config, runner scheduler.BatchRunner, logger *slog.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	filter := appsync.BatchFilter{
		Status:          storage.SyncStatus(cfg.Scheduler.Status),
		ProviderCode:    cfg.Scheduler.ProviderCode,
		NotSyncedWithin: cfg.Scheduler.NotSyncedWithin,
		Limit:           cfg.Scheduler.Limit,
		Trigger:         scheduler.TriggerScheduler,
	}
	return scheduler.New(cfg.Scheduler.Spec, filter, runner, 0, logger.With("system", "scheduler"))
}

// RunServe runs the API server and, when enabled, the batch scheduler.
// It blocks until SIGINT or SIGTERM.
func RunServe(cfg *config.Config, flags ServeFlags, logger *slog.Logger) error {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close resources", "error", err)
		}
	}()

	app.Jobs.StartBackgroundCleanup(jobCleanupInterval)
	defer app.Jobs.StopBackgroundCleanup()

	sched, err := NewScheduler(cfg, app.Orchestrator, logger)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	server := api.NewServer(APIConfig(cfg, flags), api.Dependencies{
		Repo:         app.Store,
		Registry:     app.Registry,
		Orchestrator: app.Orchestrator,
		Bookings:     app.Bookings,
		Jobs:         app.Jobs,
	}, logger.With("system", "api"))

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
