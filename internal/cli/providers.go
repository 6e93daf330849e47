package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers/duffel"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/events"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// NewDuffelProvider creates a Duffel adapter from config
func NewDuffelProvider(cfg config.DuffelConfig, logger *slog.Logger) (*duffel.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("duffel api key is not set (DUFFEL_ACCESS_TOKEN)")
	}
	client := duffel.NewClient(duffel.Config{
		BaseURL:            cfg.BaseURL,
		APIKey:             cfg.APIKey,
		APIVersion:         cfg.APIVersion,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		MaxRetries:         cfg.MaxRetries,
		Timeout:            cfg.Timeout,
	}, logger.With("system", "duffel"))
	return duffel.NewProvider(client, logger.With("system", "duffel")), nil
}

// BuildRegistry registers every enabled provider
func BuildRegistry(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	var enabled []providers.Provider

	if cfg.Providers.Duffel.Enabled {
		duffelCfg := cfg.Providers.Duffel
		duffelCfg.APIKey = cfg.GetAPIKey(duffelCfg.APIKey, "DUFFEL_ACCESS_TOKEN", "DUFFEL_API_KEY")
		p, err := NewDuffelProvider(duffelCfg, logger)
		if err != nil {
			return nil, err
		}
		enabled = append(enabled, p)
	}

	return providers.NewRegistry(logger, enabled...), nil
}

// OpenStorage opens the configured store, running migrations
func OpenStorage(cfg config.StorageConfig, logger *slog.Logger) (storage.Repository, error) {
	switch cfg.Driver {
	case "", "sqlite":
		store, err := storage.NewStorageWithLogger(cfg.DatabasePath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := storage.NewPostgresStorage(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewPublisher returns the Kafka publisher when enabled, otherwise a no-op.
// The returned closer flushes pending events.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (appsync.ChangePublisher, io.Closer, error) {
	if !cfg.Enabled {
		return events.NoopPublisher{}, nopCloser{}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.Source, logger.With("system", "events"))
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
