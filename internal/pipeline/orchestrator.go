// Package pipeline turns an applied query into one backend call and hands
// the sampled result to whoever draws it.
//
// Every apply gets a sequence number. Only the most recently issued number
// may deliver a result; a slower, older call is discarded when it lands.
// Calls are never cancelled and never retried.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/canemap/canemap/internal/prediction"
)

const tracerName = "github.com/canemap/canemap/internal/pipeline"

// DefaultMaxPointsPerZone bounds the records drawn per result set.
const DefaultMaxPointsPerZone = 1000

// ErrSuperseded marks the outcome of an apply that a later apply replaced.
var ErrSuperseded = errors.New("apply superseded by a later request")

// Predictor fetches predictions for a query.
type Predictor interface {
	Predict(ctx context.Context, q prediction.Query) (*prediction.Response, error)
}

// Sink receives the effects of the latest apply. All methods are called
// with the orchestrator's sequencing lock held, so they must not call back
// into the orchestrator.
type Sink interface {
	// Reset runs when an apply starts. The previous result must be cleared.
	Reset(seq uint64, q prediction.Query)

	// Deliver draws a sampled result. A returned error fails the apply.
	Deliver(seq uint64, resp *prediction.Response) error

	// Fail reports an apply that did not produce a drawable result.
	Fail(seq uint64, err error)
}

// Outcome is what an apply ended with.
type Outcome struct {
	Seq      uint64
	Response *prediction.Response
	Err      error
}

// Stale reports whether a later apply superseded this one.
func (o Outcome) Stale() bool {
	return errors.Is(o.Err, ErrSuperseded)
}

// Config holds configuration for an Orchestrator.
type Config struct {
	Predictor Predictor

	// MaxPointsPerZone caps the records of each result set (default: 1000).
	MaxPointsPerZone int

	// Pacing is slept between stages to animate progress. Zero disables it.
	Pacing time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
}

// Orchestrator sequences applies for one session.
type Orchestrator struct {
	predictor Predictor
	maxPoints int
	pacing    time.Duration
	logger    zerolog.Logger
	metrics   *Metrics
	tracer    trace.Tracer

	// seqMu orders numbering and snapshots against delivery of results.
	seqMu  sync.Mutex
	latest uint64

	progressMu sync.RWMutex
	progress   Progress
}

// NewOrchestrator creates an orchestrator with no apply issued.
func NewOrchestrator(cfg Config) *Orchestrator {
	maxPoints := cfg.MaxPointsPerZone
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPointsPerZone
	}
	return &Orchestrator{
		predictor: cfg.Predictor,
		maxPoints: maxPoints,
		pacing:    cfg.Pacing,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer(tracerName),
		progress:  Progress{Stage: StageIdle},
	}
}

// Apply runs one apply of a fixed query.
func (o *Orchestrator) Apply(ctx context.Context, q prediction.Query, sink Sink) Outcome {
	return o.ApplySnapshot(ctx, func() prediction.Query { return q }, sink)
}

// ApplySnapshot runs one apply end to end: it supersedes any in-flight
// apply, fetches, samples, and delivers to sink if it is still the latest.
// snapshot is called with the sequencing lock held, so the query of a
// higher sequence number is never older than that of a lower one.
func (o *Orchestrator) ApplySnapshot(ctx context.Context, snapshot func() prediction.Query, sink Sink) Outcome {
	start := time.Now()

	o.seqMu.Lock()
	seq := o.begin()
	q := snapshot()
	sink.Reset(seq, q)
	o.seqMu.Unlock()

	ctx, span := o.tracer.Start(ctx, "pipeline.apply", trace.WithAttributes(
		attribute.Int64("apply.seq", int64(seq)),
		attribute.Int("query.year", q.Year),
		attribute.StringSlice("query.models", q.Models),
		attribute.String("query.zones", q.ZonesCSV()),
		attribute.Int("query.limit", q.Limit),
		attribute.Bool("query.group_by_level", q.GroupByLevel),
	))
	defer span.End()

	resp, err := o.run(ctx, seq, q)

	o.seqMu.Lock()
	defer o.seqMu.Unlock()

	if !o.isLatestLocked(seq) {
		o.logger.Warn().
			Uint64("seq", seq).
			Uint64("latest", o.latest).
			Msg("discarding result of superseded apply")
		span.AddEvent("superseded")
		o.metrics.recordApply(ctx, "superseded", time.Since(start))
		return Outcome{Seq: seq, Err: ErrSuperseded}
	}

	if err == nil {
		o.setProgress(seq, StageRendering)
		span.AddEvent(string(StageRendering))
		err = sink.Deliver(seq, resp)
	}

	if err != nil {
		sink.Fail(seq, err)
		o.setProgress(seq, StageFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, prediction.UserMessage(err))
		o.metrics.recordApply(ctx, "failed", time.Since(start))
		o.logger.Error().Err(err).Uint64("seq", seq).Msg("apply failed")
		return Outcome{Seq: seq, Err: err}
	}

	o.setProgress(seq, StageDone)
	o.metrics.recordApply(ctx, "ok", time.Since(start))
	o.logger.Info().
		Uint64("seq", seq).
		Int("results", len(resp.Results)).
		Int("points", resp.PointCount()).
		Bool("cached", resp.Cached).
		Msg("apply completed")
	return Outcome{Seq: seq, Response: resp}
}

// begin issues a new sequence number, superseding every earlier one.
func (o *Orchestrator) begin() uint64 {
	o.latest++
	o.setProgress(o.latest, StagePreparing)
	return o.latest
}

func (o *Orchestrator) isLatestLocked(seq uint64) bool {
	return seq == o.latest
}

// run fetches and samples the result for seq. Progress is only published
// while seq is the latest apply.
func (o *Orchestrator) run(ctx context.Context, seq uint64, q prediction.Query) (*prediction.Response, error) {
	span := trace.SpanFromContext(ctx)

	if err := o.pace(ctx); err != nil {
		return nil, &prediction.TransportError{Err: err}
	}

	o.setProgress(seq, StageFetching)
	span.AddEvent(string(StageFetching))
	resp, err := o.predictor.Predict(ctx, q)
	if err != nil {
		return nil, err
	}

	o.setProgress(seq, StageProcessing)
	span.AddEvent(string(StageProcessing))
	if err := o.pace(ctx); err != nil {
		return nil, &prediction.TransportError{Err: err}
	}

	o.setProgress(seq, StageOptimizing)
	span.AddEvent(string(StageOptimizing))
	sampled := o.sample(ctx, resp)
	if err := o.pace(ctx); err != nil {
		return nil, &prediction.TransportError{Err: err}
	}

	o.logger.Debug().
		Uint64("seq", seq).
		Int("received", resp.PointCount()).
		Int("kept", sampled.PointCount()).
		Msg("prediction result sampled")
	return sampled, nil
}

// Progress returns the progress of the latest apply.
func (o *Orchestrator) Progress() Progress {
	o.progressMu.RLock()
	defer o.progressMu.RUnlock()
	return o.progress
}

func (o *Orchestrator) setProgress(seq uint64, stage Stage) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if seq < o.progress.Seq {
		return
	}
	o.progress = Progress{Seq: seq, Stage: stage, Percent: stage.Percent()}
}

func (o *Orchestrator) sample(ctx context.Context, resp *prediction.Response) *prediction.Response {
	out := &prediction.Response{
		Results:  make([]prediction.ResultSet, 0, len(resp.Results)),
		Cached:   resp.Cached,
		CacheKey: resp.CacheKey,
	}
	for _, rs := range resp.Results {
		out.Results = append(out.Results, prediction.SampleResultSet(rs, o.maxPoints))
	}
	o.metrics.recordDropped(ctx, resp.PointCount()-out.PointCount())
	return out
}

func (o *Orchestrator) pace(ctx context.Context) error {
	if o.pacing <= 0 {
		return nil
	}
	timer := time.NewTimer(o.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
