package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/canemap/canemap/internal/pipeline"

// Metrics holds the orchestrator instruments.
type Metrics struct {
	applyDuration metric.Float64Histogram
	applies       metric.Int64Counter
	sampledPoints metric.Int64Counter
}

// NewMetrics creates the orchestrator instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	applyDuration, err := meter.Float64Histogram(
		"canemap.apply.duration",
		metric.WithDescription("Duration of prediction applies in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	applies, err := meter.Int64Counter(
		"canemap.apply.total",
		metric.WithDescription("Number of prediction applies by outcome"),
		metric.WithUnit("{apply}"),
	)
	if err != nil {
		return nil, err
	}

	sampledPoints, err := meter.Int64Counter(
		"canemap.apply.points_dropped",
		metric.WithDescription("Prediction points dropped by the render sampler"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		applyDuration: applyDuration,
		applies:       applies,
		sampledPoints: sampledPoints,
	}, nil
}

func (m *Metrics) recordApply(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.applies.Add(ctx, 1, attrs)
	m.applyDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) recordDropped(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sampledPoints.Add(ctx, int64(n))
}
