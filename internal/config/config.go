// Package config loads service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/canemap/canemap/internal/database"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all configuration for the dashboard service and worker.
type Config struct {
	// Server configuration
	Port        string `env:"APP_PORT,default=8080"`
	Environment string `env:"APP_ENV,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	RequireTLS  bool   `env:"REQUIRE_TLS,default=false"`

	// Prediction backend
	APIBaseURL     string        `env:"API_BASE_URL,required"`
	PredictTimeout time.Duration `env:"PREDICT_TIMEOUT,default=30s"`

	// Map and rendering
	MapProviderKey   string        `env:"MAP_PROVIDER_KEY"`
	ProgressPacing   time.Duration `env:"PROGRESS_PACING,default=0s"`
	MaxPointsPerZone int           `env:"MAX_POINTS_PER_ZONE,default=1000"`

	// Sessions
	SessionStore string          `env:"SESSION_STORE,default=memory"`
	SessionTTL   time.Duration   `env:"SESSION_TTL,default=12h"`
	DB           database.Config `env:", prefix=DB_"`

	// Telemetry
	OTELEnabled     bool    `env:"OTEL_ENABLED,default=false"`
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO,default=1"`

	// Cache-control jobs (optional)
	PubSubProjectID    string `env:"PUBSUB_PROJECT_ID"`
	PubSubSubscription string `env:"PUBSUB_SUBSCRIPTION,default=canemap-cache-jobs"`
	PubSubTopic        string `env:"PUBSUB_TOPIC"`
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith loads configuration from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxPointsPerZone <= 0 {
		errs = append(errs, errors.New("MAX_POINTS_PER_ZONE must be positive"))
	}
	if c.PredictTimeout <= 0 {
		errs = append(errs, errors.New("PREDICT_TIMEOUT must be positive"))
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATIO must be between 0 and 1"))
	}
	if c.ProgressPacing < 0 {
		errs = append(errs, errors.New("PROGRESS_PACING must not be negative"))
	}
	switch c.SessionStore {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.SessionStore))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// PubSubEnabled reports whether cache-control jobs go through Pub/Sub.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}
