package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/prediction/backend"
	"github.com/canemap/canemap/internal/provider/resilience"
)

// CacheClearer drops the backend prediction cache.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// HealthSource reports the observed health of a backend provider.
type HealthSource interface {
	Health(name string) *resilience.Health
}

// ProcessorConfig holds configuration for a Processor.
type ProcessorConfig struct {
	Clearer CacheClearer
	Health  HealthSource
	Logger  zerolog.Logger
}

// Processor executes decoded cache-control jobs.
type Processor struct {
	clearer CacheClearer
	health  HealthSource
	logger  zerolog.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		clearer: cfg.Clearer,
		health:  cfg.Health,
		logger:  cfg.Logger,
	}
}

// Process decodes and runs one job. Errors for which Permanent is true
// mean the message can never succeed.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	msg, err := DecodeJob(data)
	if err != nil {
		return err
	}

	logger := p.logger.With().
		Str("job_type", msg.JobType).
		Str("request_id", msg.RequestID).
		Logger()

	start := time.Now()
	switch msg.JobType {
	case JobCacheClear:
		err = p.clearCache(ctx)
	case JobHealthCheck:
		err = p.checkHealth()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJob, msg.JobType)
	}
	if err != nil {
		return err
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
	return nil
}

func (p *Processor) clearCache(ctx context.Context) error {
	if err := p.clearer.ClearCache(ctx); err != nil {
		return fmt.Errorf("clear prediction cache: %w", err)
	}
	return nil
}

// checkHealth fails while the prediction breaker is open, so the job is
// redelivered once the backend recovers.
func (p *Processor) checkHealth() error {
	if p.health == nil {
		return nil
	}
	for _, name := range []string{backend.ProviderName, backend.CacheProviderName} {
		h := p.health.Health(name)
		if h == nil {
			continue
		}
		if !h.Healthy() && !h.Degraded() {
			return fmt.Errorf("provider %s unhealthy: %s", name, h.LastError)
		}
		p.logger.Debug().Str("provider", name).Str("state", h.State.String()).Msg("provider health")
	}
	return nil
}
