package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/application/bookings"
	"github.com/eshaffer321/booking-sync-backend/internal/application/service"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// App holds the wired application services shared by the commands
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        storage.Repository
	Registry     *providers.Registry
	Orchestrator *appsync.Orchestrator
	Bookings     *bookings.Service
	Jobs         *service.JobService

	publisherCloser io.Closer
}

// NewApp opens storage, builds the provider registry and the event
// publisher, and wires the application services on top of them
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStorage(cfg.Storage, logger.With("system", "storage"))
	if err != nil {
		return nil, err
	}

	registry, err := BuildRegistry(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	publisher, closer, err := NewPublisher(cfg.Events.Kafka, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := newApp(cfg, logger, store, registry, publisher)
	app.publisherCloser = closer
	return app, nil
}

func newApp(cfg *config.Config, logger *slog.Logger, store storage.Repository, registry *providers.Registry, publisher appsync.ChangePublisher) *App {
	syncCfg := SyncConfig(cfg.Sync)
	orch := appsync.NewOrchestrator(store, registry, publisher, syncCfg, logger.With("system", "sync"))

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Registry:     registry,
		Orchestrator: orch,
		Bookings:     bookings.NewService(store, registry, orch, syncCfg, logger.With("system", "bookings")),
		Jobs:         service.NewJobService(orch, registry, logger.With("system", "jobs")),
	}
}

// SyncConfig maps the sync section of the config to orchestrator settings
func SyncConfig(c config.SyncConfig) appsync.Config {
	return appsync.Config{
		DefaultProvider:     c.DefaultProvider,
		SkipIfRecentMinutes: c.SkipIfRecentMinutes,
		BatchLimit:          c.BatchLimit,
		BatchConcurrency:    c.BatchConcurrency,
		ProviderTimeout:     c.ProviderTimeout,
	}
}

// Close flushes the publisher and closes storage
func (a *App) Close() error {
	var errs []error
	if a.publisherCloser != nil {
		errs = append(errs, a.publisherCloser.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
