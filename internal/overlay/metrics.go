package overlay

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/canemap/canemap/internal/overlay"

// Metrics holds the overlay instruments.
type Metrics struct {
	markers     metric.Int64UpDownCounter
	reconciles  metric.Int64Counter
	zoneSkipped metric.Int64Counter
}

// NewMetrics creates the overlay instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	markers, err := meter.Int64UpDownCounter(
		"canemap.overlay.markers",
		metric.WithDescription("Number of markers currently placed across all sessions"),
		metric.WithUnit("{marker}"),
	)
	if err != nil {
		return nil, err
	}

	reconciles, err := meter.Int64Counter(
		"canemap.overlay.reconciles",
		metric.WithDescription("Number of reconciliation cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	zoneSkipped, err := meter.Int64Counter(
		"canemap.overlay.zone_markers_skipped",
		metric.WithDescription("Zone markers skipped for lack of a known center"),
		metric.WithUnit("{marker}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{markers: markers, reconciles: reconciles, zoneSkipped: zoneSkipped}, nil
}

func (m *Metrics) addMarkers(n int) {
	if m == nil || n == 0 {
		return
	}
	m.markers.Add(context.Background(), int64(n))
}

func (m *Metrics) recordReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconciles.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordSkippedZone() {
	if m == nil {
		return
	}
	m.zoneSkipped.Add(context.Background(), 1)
}
