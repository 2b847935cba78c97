// Package main provides the entrypoint for the CaneMap dashboard API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/api"
	"github.com/canemap/canemap/internal/api/handler"
	"github.com/canemap/canemap/internal/api/middleware"
	"github.com/canemap/canemap/internal/config"
	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/database"
	"github.com/canemap/canemap/internal/overlay"
	"github.com/canemap/canemap/internal/pipeline"
	"github.com/canemap/canemap/internal/prediction/backend"
	"github.com/canemap/canemap/internal/provider/resilience"
	"github.com/canemap/canemap/internal/telemetry"
	"github.com/canemap/canemap/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "canemap-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting CaneMap API")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.OTELSampleRatio,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	if tp.Enabled() {
		log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("telemetry enabled")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create HTTP metrics")
	}
	pipelineMetrics, err := pipeline.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pipeline metrics")
	}
	overlayMetrics, err := overlay.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create overlay metrics")
	}

	registry := resilience.NewRegistry()
	client := backend.NewClient(backend.ClientConfig{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.PredictTimeout,
		Registry: registry,
		Logger:   log.With().Str("component", "backend").Logger(),
	})

	var checks []handler.ReadinessCheck
	repo := dashboard.Repository(dashboard.NewInMemoryRepository())
	if cfg.SessionStore == config.StorePostgres {
		pool, err := database.Connect(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to session database")
		}
		defer pool.Close()

		pg := dashboard.NewPostgresRepository(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate session table")
		}
		repo = pg
		checks = append(checks, handler.ReadinessCheck{Name: "session-store", Check: pool.Ping})
		log.Info().Str("host", cfg.DB.Host).Msg("postgres session store ready")
	}

	manager := dashboard.NewManager(dashboard.ManagerConfig{
		Repository:       repo,
		Predictor:        client,
		MapProviderKey:   cfg.MapProviderKey,
		MaxPointsPerZone: cfg.MaxPointsPerZone,
		Pacing:           cfg.ProgressPacing,
		Logger:           log.With().Str("component", "dashboard").Logger(),
		PipelineMetrics:  pipelineMetrics,
		OverlayMetrics:   overlayMetrics,
	})
	if cfg.MapProviderKey == "" {
		log.Warn().Msg("MAP_PROVIDER_KEY not set; sessions will show the map-unavailable banner")
	}

	var publisher *worker.Publisher
	var jobs handler.JobPublisher
	if cfg.PubSubEnabled() && cfg.PubSubTopic != "" {
		publisher, err = worker.NewPublisher(ctx, worker.PublisherConfig{
			ProjectID: cfg.PubSubProjectID,
			Topic:     cfg.PubSubTopic,
			Logger:    log.With().Str("component", "publisher").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create job publisher")
		}
		jobs = publisher
		log.Info().Str("topic", cfg.PubSubTopic).Msg("cache clears are queued for the worker")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		Metrics:         httpMetrics,
		Manager:         manager,
		Registry:        registry,
		CacheClearer:    client,
		Publisher:       jobs,
		ReadinessChecks: checks,
		RequireTLS:      cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PredictTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go sweepSessions(sweepCtx, manager, cfg.SessionTTL, log)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	manager.Close()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing job publisher")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown")
	}

	log.Info().Msg("server stopped")
}

// sweepSessions tears down idle sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, manager *dashboard.Manager, ttl time.Duration, log zerolog.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.Sweep(ctx, ttl); err != nil {
				log.Warn().Err(err).Msg("session sweep failed")
			}
		}
	}
}
