// Package dashboard holds per-browser sessions of the prediction map.
//
// A Session wires one filter state, one fetch orchestrator, one marker
// reconciler and one map canvas together. Lock order is orchestrator then
// session: sink callbacks take the session lock, so session methods never
// call into the orchestrator while holding it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/overlay"
	"github.com/canemap/canemap/internal/pipeline"
	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// ErrSessionClosed is returned by operations on a torn down session.
var ErrSessionClosed = errors.New("session closed")

// ResultInfo describes the result set currently drawn.
type ResultInfo struct {
	Seq        uint64
	Models     []string
	Averages   map[string]float64
	ZoneStats  []prediction.ZoneStatistic
	Points     int
	Markers    int
	Skipped    []string
	Cached     bool
	CacheKey   string
	RenderedAt time.Time
}

// View is a consistent read of a session.
type View struct {
	ID                  string
	Filter              filter.State
	Applied             *filter.State
	HasUnappliedChanges bool
	Progress            pipeline.Progress
	Banner              string
	Summary             *prediction.BandSummary
	Result              *ResultInfo
	MapAvailable        bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SessionConfig holds the collaborators of a session.
type SessionConfig struct {
	ID        string
	Predictor pipeline.Predictor

	// MapProviderKey enables the map canvas. Without it the session shows
	// the map-unavailable banner.
	MapProviderKey string

	MaxPointsPerZone int
	Pacing           time.Duration

	// Record restores a persisted session.
	Record *Record

	Logger          zerolog.Logger
	PipelineMetrics *pipeline.Metrics
	OverlayMetrics  *overlay.Metrics
	Now             func() time.Time
}

// Session is one analyst's dashboard.
type Session struct {
	id         string
	logger     zerolog.Logger
	now        func() time.Time
	canvas     *maphost.Canvas
	reconciler *overlay.Reconciler
	orch       *pipeline.Orchestrator

	mu        sync.RWMutex
	filter    filter.State
	applied   *filter.State
	banner    string
	summary   *prediction.BandSummary
	result    *ResultInfo
	createdAt time.Time
	updatedAt time.Time
	closed    bool
}

// NewSession creates a session with default filters, or restores one from
// cfg.Record.
func NewSession(cfg SessionConfig) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger.With().Str("session_id", cfg.ID).Logger()

	canvas := maphost.NewCanvas(maphost.CanvasConfig{ProviderKey: cfg.MapProviderKey})

	s := &Session{
		id:     cfg.ID,
		logger: logger,
		now:    now,
		canvas: canvas,
		reconciler: overlay.NewReconciler(overlay.Config{
			Host:    canvas,
			Logger:  logger,
			Metrics: cfg.OverlayMetrics,
		}),
		orch: pipeline.NewOrchestrator(pipeline.Config{
			Predictor:        cfg.Predictor,
			MaxPointsPerZone: cfg.MaxPointsPerZone,
			Pacing:           cfg.Pacing,
			Logger:           logger,
			Metrics:          cfg.PipelineMetrics,
		}),
		filter: filter.Default(),
	}

	if rec := cfg.Record; rec != nil {
		s.filter = rec.Filter.Clone()
		if rec.Applied != nil {
			applied := rec.Applied.Clone()
			s.applied = &applied
		}
		s.createdAt = rec.CreatedAt
		s.updatedAt = rec.UpdatedAt
	} else {
		s.createdAt = now()
		s.updatedAt = s.createdAt
	}

	if !canvas.Available() {
		s.banner = prediction.MessageMapUnavailable
	}
	if s.filter.FocusedZone != "" {
		_, view, ok, _ := filter.FocusZone(s.filter, s.filter.FocusedZone)
		s.moveCamera(s.filter.FocusedZone, view, ok)
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Filter returns a copy of the edited filter state.
func (s *Session) Filter() filter.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Clone()
}

// SetField changes one filter field.
func (s *Session) SetField(field filter.Field, value any) error {
	return s.SetFields(map[filter.Field]any{field: value})
}

// SetFields changes several filter fields at once. Either every change is
// applied or none is.
func (s *Session) SetFields(fields map[filter.Field]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	next := s.filter
	// selected_month goes last since it rewrites year and models.
	for field, value := range fields {
		if field == filter.FieldSelectedMonth {
			continue
		}
		var err error
		if next, err = filter.SetField(next, field, value); err != nil {
			return err
		}
	}
	if value, ok := fields[filter.FieldSelectedMonth]; ok {
		var err error
		if next, err = filter.SetField(next, filter.FieldSelectedMonth, value); err != nil {
			return err
		}
	}

	s.filter = next
	s.touchLocked()
	return nil
}

// SelectMonth switches month, year and model together.
func (s *Session) SelectMonth(month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	next, err := filter.ApplyMonthSelection(s.filter, month)
	if err != nil {
		return err
	}
	s.filter = next
	s.touchLocked()
	return nil
}

// FocusZone narrows the filter to one zone and moves the map there when the
// zone center is known.
func (s *Session) FocusZone(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	next, view, ok, err := filter.FocusZone(s.filter, name)
	if err != nil {
		return err
	}
	s.filter = next
	s.touchLocked()
	s.moveCamera(next.FocusedZone, view, ok)
	return nil
}

// ResetZoneFocus restores every default zone and the default view.
func (s *Session) ResetZoneFocus() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	next, view := filter.ResetZoneFocus(s.filter)
	s.filter = next
	s.touchLocked()
	if err := s.canvas.SetView(view); err != nil {
		s.logger.Debug().Err(err).Msg("map view not reset")
	}
	return nil
}

func (s *Session) moveCamera(zoneName string, view zone.View, ok bool) {
	if !ok {
		s.logger.Debug().Str("zone", zoneName).Msg("no known center; map left in place")
		return
	}
	if err := s.canvas.PanTo(view.Center); err != nil {
		s.logger.Debug().Err(err).Msg("map not panned")
		return
	}
	if err := s.canvas.SetZoom(view.Zoom); err != nil {
		s.logger.Debug().Err(err).Msg("map not zoomed")
	}
}

// Apply promotes the edited filter to the applied state and fetches it.
// Only the most recent apply of the session draws markers.
func (s *Session) Apply(ctx context.Context) (pipeline.Outcome, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return pipeline.Outcome{}, ErrSessionClosed
	}

	sink := &applySink{session: s}
	out := s.orch.ApplySnapshot(ctx, sink.snapshot, sink)
	return out, nil
}

// applySink feeds one apply into the session.
type applySink struct {
	session *Session
	focus   string
}

// snapshot copies the edited filter. The orchestrator calls it while
// numbering the apply.
func (a *applySink) snapshot() prediction.Query {
	s := a.session
	s.mu.RLock()
	defer s.mu.RUnlock()
	a.focus = s.filter.FocusedZone
	return s.filter.Query.Clone()
}

func (a *applySink) Reset(seq uint64, q prediction.Query) {
	s := a.session
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := filter.State{Query: q.Clone(), FocusedZone: a.focus}
	s.applied = &applied
	s.banner = ""
	if !s.canvas.Available() {
		s.banner = prediction.MessageMapUnavailable
	}
	s.summary = nil
	s.result = nil
	s.touchLocked()

	if err := s.reconciler.Clear(); err != nil {
		s.logger.Warn().Err(err).Uint64("seq", seq).Msg("clearing markers before fetch")
	}
}

func (a *applySink) Deliver(seq uint64, resp *prediction.Response) error {
	s := a.session

	res, err := s.reconciler.Reconcile(overlay.Input{Results: resp.Results, FocusedZone: a.focus})
	if err != nil {
		return err
	}

	var points []prediction.PredictionRecord
	info := &ResultInfo{
		Seq:        seq,
		Averages:   make(map[string]float64, len(resp.Results)),
		Markers:    res.Total(),
		Skipped:    res.SkippedZones,
		Cached:     resp.Cached,
		CacheKey:   resp.CacheKey,
		RenderedAt: s.now(),
	}
	for i := range resp.Results {
		rs := &resp.Results[i]
		info.Models = append(info.Models, rs.ModelName)
		info.Averages[rs.ModelName] = rs.OverallAverage
		info.ZoneStats = append(info.ZoneStats, rs.ZoneStatistics...)
		points = append(points, rs.Points()...)
	}
	info.Points = len(points)
	summary := prediction.Summarize(points)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = &summary
	s.result = info

	s.logger.Info().
		Uint64("seq", seq).
		Int("results", len(resp.Results)).
		Int("points", info.Points).
		Int("markers", info.Markers).
		Msg("prediction overlay updated")
	return nil
}

func (a *applySink) Fail(_ uint64, err error) {
	s := a.session
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := prediction.UserMessage(err)
	if !s.canvas.Available() && msg != prediction.MessageMapUnavailable {
		msg = prediction.MessageMapUnavailable + ". " + msg
	}
	s.banner = msg
}

// View returns a consistent read of the session.
func (s *Session) View() View {
	progress := s.orch.Progress()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		ID:           s.id,
		Filter:       s.filter.Clone(),
		Progress:     progress,
		Banner:       s.banner,
		MapAvailable: s.canvas.Available(),
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	// Before the first apply the defaults count as applied.
	appliedQuery := filter.Default().Query
	if s.applied != nil {
		applied := s.applied.Clone()
		v.Applied = &applied
		appliedQuery = applied.Query
	}
	v.HasUnappliedChanges = filter.HasUnappliedChanges(s.filter.Query, appliedQuery)
	if s.summary != nil {
		summary := *s.summary
		v.Summary = &summary
	}
	if s.result != nil {
		result := *s.result
		v.Result = &result
	}
	return v
}

// Progress returns the progress of the latest apply.
func (s *Session) Progress() pipeline.Progress {
	return s.orch.Progress()
}

// Map returns the current map canvas state.
func (s *Session) Map() maphost.Snapshot {
	return s.canvas.Snapshot()
}

// MarkerCount returns the number of markers the session owns.
func (s *Session) MarkerCount() int {
	return s.reconciler.Count()
}

// OpenPopup opens the popup of a marker.
func (s *Session) OpenPopup(id maphost.MarkerID) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}
	return s.canvas.OpenPopup(id)
}

// Record returns the persisted part of the session.
func (s *Session) Record() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := &Record{
		ID:        s.id,
		Filter:    s.filter.Clone(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.applied != nil {
		applied := s.applied.Clone()
		rec.Applied = &applied
	}
	return rec
}

// LastActivity returns when the session was last changed.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Teardown releases every marker. Further operations fail with
// ErrSessionClosed.
func (s *Session) Teardown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.reconciler.Teardown(); err != nil {
		return fmt.Errorf("teardown session %s: %w", s.id, err)
	}
	return nil
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}
