// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} expansion
//  2. Environment variables (fallback)
//
// A .env file in the working directory is loaded into the environment first.
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	duffelToken := cfg.Providers.Duffel.APIKey
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Sync          SyncConfig          `yaml:"sync"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Events        EventsConfig        `yaml:"events"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SyncConfig holds orchestrator defaults
type SyncConfig struct {
	DefaultProvider     string        `yaml:"default_provider"`
	SkipIfRecentMinutes int           `yaml:"skip_if_recent_minutes"`
	BatchLimit          int           `yaml:"batch_limit"`
	BatchConcurrency    int           `yaml:"batch_concurrency"`
	ProviderTimeout     time.Duration `yaml:"provider_timeout"`
}

// ProvidersConfig holds provider-specific configuration
type ProvidersConfig struct {
	Duffel DuffelConfig `yaml:"duffel"`
}

// DuffelConfig holds Duffel API settings
type DuffelConfig struct {
	Enabled            bool          `yaml:"enabled"`
	BaseURL            string        `yaml:"base_url"`
	APIKey             string        `yaml:"api_key"`
	APIVersion         string        `yaml:"api_version"`
	RateLimitPerSecond float64       `yaml:"rate_limit_per_second"`
	MaxRetries         int           `yaml:"max_retries"`
	Timeout            time.Duration `yaml:"timeout"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver       string `yaml:"driver"` // "sqlite" or "postgres"
	DatabasePath string `yaml:"database_path"`
	DSN          string `yaml:"dsn"`
}

// EventsConfig holds change event publishing settings
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Source  string   `yaml:"source"`
}

// SchedulerConfig holds the periodic batch settings
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Spec            string        `yaml:"spec"`
	Status          string        `yaml:"status"`
	ProviderCode    string        `yaml:"provider"`
	NotSyncedWithin time.Duration `yaml:"not_synced_within"`
	Limit           int           `yaml:"limit"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${DUFFEL_ACCESS_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Sync: SyncConfig{
			DefaultProvider:     getEnv("SYNC_DEFAULT_PROVIDER", "duffel"),
			SkipIfRecentMinutes: getEnvInt("SYNC_SKIP_IF_RECENT_MINUTES", 5),
			BatchLimit:          getEnvInt("SYNC_BATCH_LIMIT", 50),
			BatchConcurrency:    getEnvInt("SYNC_BATCH_CONCURRENCY", 4),
			ProviderTimeout:     getEnvDuration("SYNC_PROVIDER_TIMEOUT", 30*time.Second),
		},
		Providers: ProvidersConfig{
			Duffel: DuffelConfig{
				Enabled:            getEnvBool("DUFFEL_ENABLED", true),
				BaseURL:            getEnv("DUFFEL_BASE_URL", ""),
				APIKey:             os.Getenv("DUFFEL_ACCESS_TOKEN"),
				APIVersion:         getEnv("DUFFEL_API_VERSION", ""),
				RateLimitPerSecond: getEnvFloat("DUFFEL_RATE_LIMIT", 5),
				MaxRetries:         getEnvInt("DUFFEL_MAX_RETRIES", 3),
				Timeout:            getEnvDuration("DUFFEL_TIMEOUT", 30*time.Second),
			},
		},
		Storage: StorageConfig{
			Driver:       getEnv("STORAGE_DRIVER", "sqlite"),
			DatabasePath: getEnv("BOOKING_DB_PATH", "booking_sync.db"),
			DSN:          os.Getenv("DATABASE_URL"),
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Enabled: getEnvBool("KAFKA_ENABLED", false),
				Brokers: getEnvList("KAFKA_BROKERS"),
				Topic:   getEnv("KAFKA_TOPIC", "booking.sync.changes"),
				Source:  getEnv("KAFKA_SOURCE", "booking-sync"),
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", false),
			Spec:            getEnv("SCHEDULER_SPEC", "@every 15m"),
			Status:          getEnv("SCHEDULER_STATUS", ""),
			ProviderCode:    getEnv("SCHEDULER_PROVIDER", ""),
			NotSyncedWithin: getEnvDuration("SCHEDULER_NOT_SYNCED_WITHIN", 30*time.Minute),
			Limit:           getEnvInt("SCHEDULER_LIMIT", 0),
		},
		API: APIConfig{
			Port:           getEnvInt("API_PORT", 8085),
			AllowedOrigins: getEnvList("API_ALLOWED_ORIGINS"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	// A missing .env is fine
	_ = godotenv.Load()

	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate reports configuration that cannot work
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DatabasePath == "" {
			errs = append(errs, errors.New("storage.database_path is required for sqlite"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite or postgres", c.Storage.Driver))
	}

	if c.Providers.Duffel.Enabled && c.GetAPIKey(c.Providers.Duffel.APIKey, "DUFFEL_ACCESS_TOKEN", "DUFFEL_API_KEY") == "" {
		errs = append(errs, errors.New("providers.duffel.api_key is required when duffel is enabled"))
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("events.kafka.brokers is required when kafka is enabled"))
	}
	if c.Sync.BatchConcurrency < 1 {
		errs = append(errs, errors.New("sync.batch_concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}

// applyDefaults fills zero values left by a partial YAML file
func (c *Config) applyDefaults() {
	if c.Sync.DefaultProvider == "" {
		c.Sync.DefaultProvider = "duffel"
	}
	if c.Sync.SkipIfRecentMinutes == 0 {
		c.Sync.SkipIfRecentMinutes = 5
	}
	if c.Sync.BatchLimit == 0 {
		c.Sync.BatchLimit = 50
	}
	if c.Sync.BatchConcurrency == 0 {
		c.Sync.BatchConcurrency = 4
	}
	if c.Sync.ProviderTimeout == 0 {
		c.Sync.ProviderTimeout = 30 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "booking_sync.db"
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "booking.sync.changes"
	}
	if c.Events.Kafka.Source == "" {
		c.Events.Kafka.Source = "booking-sync"
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = "@every 15m"
	}
	if c.API.Port == 0 {
		c.API.Port = 8085
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(val); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetAPIKey retrieves an API key from config first, then tries multiple environment variable names
// Usage: GetAPIKey(cfg.Providers.Duffel.APIKey, "DUFFEL_ACCESS_TOKEN", "DUFFEL_API_KEY")
func (c *Config) GetAPIKey(configValue string, envVarNames ...string) string {
	if configValue != "" {
		return configValue
	}

	for _, envVar := range envVarNames {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}

	return ""
}
