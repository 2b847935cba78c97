package dashboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/pipeline"
	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// mockPredictor answers by selected month. A gated month blocks until its
// gate is closed.
type mockPredictor struct {
	mu        sync.Mutex
	responses map[int]*prediction.Response
	errs      map[int]error
	gates     map[int]chan struct{}
	started   chan int
}

func newMockPredictor() *mockPredictor {
	return &mockPredictor{
		responses: make(map[int]*prediction.Response),
		errs:      make(map[int]error),
		gates:     make(map[int]chan struct{}),
		started:   make(chan int, 16),
	}
}

func (m *mockPredictor) Predict(_ context.Context, q prediction.Query) (*prediction.Response, error) {
	m.mu.Lock()
	resp := m.responses[q.SelectedMonth]
	err := m.errs[q.SelectedMonth]
	gate := m.gates[q.SelectedMonth]
	m.mu.Unlock()

	m.started <- q.SelectedMonth
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &prediction.Response{}, nil
	}
	return resp, nil
}

func responseFor(model string, values ...float64) *prediction.Response {
	rs := prediction.ResultSet{
		ModelName:      model,
		OverallAverage: 11,
		ZoneStatistics: []prediction.ZoneStatistic{{Zone: "MAC", Model: model, Total: len(values)}},
	}
	for i, v := range values {
		rs.Predictions = append(rs.Predictions, prediction.PredictionRecord{
			Lat: 15.8 + float64(i)*0.001, Lon: 104.4, PredictionValue: v, Zone: "MAC",
		})
	}
	return &prediction.Response{Results: []prediction.ResultSet{rs}}
}

func newSession(t *testing.T, p pipeline.Predictor, key string) *dashboard.Session {
	t.Helper()
	return dashboard.NewSession(dashboard.SessionConfig{
		ID:             "ses_test",
		Predictor:      p,
		MapProviderKey: key,
		Logger:         zerolog.Nop(),
	})
}

func TestSession_Defaults(t *testing.T) {
	s := newSession(t, newMockPredictor(), "key")

	v := s.View()
	assert.Equal(t, "ses_test", v.ID)
	assert.Equal(t, filter.Default(), v.Filter)
	assert.Nil(t, v.Applied)
	assert.False(t, v.HasUnappliedChanges)
	assert.Empty(t, v.Banner)
	assert.True(t, v.MapAvailable)
	assert.Equal(t, pipeline.StageIdle, v.Progress.Stage)
	assert.Equal(t, zone.DefaultView, s.Map().View)
}

func TestSession_ApplyDrawsMarkers(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13, 12, 11, 9)
	s := newSession(t, p, "key")

	out, err := s.Apply(context.Background())
	require.NoError(t, err)
	require.NoError(t, out.Err)

	// one zone marker plus four points
	assert.Equal(t, 5, s.MarkerCount())
	assert.Len(t, s.Map().Markers, 5)

	v := s.View()
	require.NotNil(t, v.Applied)
	assert.False(t, v.HasUnappliedChanges)
	assert.Empty(t, v.Banner)
	assert.Equal(t, pipeline.StageDone, v.Progress.Stage)

	require.NotNil(t, v.Summary)
	assert.Equal(t, 4, v.Summary.Total)
	assert.Equal(t, 1, v.Summary.HighCount)
	assert.Equal(t, 2, v.Summary.MediumCount)
	assert.Equal(t, 1, v.Summary.LowCount)
	assert.InDelta(t, 11.25, v.Summary.Average, 1e-9)

	require.NotNil(t, v.Result)
	assert.Equal(t, []string{"m1"}, v.Result.Models)
	assert.Equal(t, 4, v.Result.Points)
	assert.Equal(t, 5, v.Result.Markers)
}

func TestSession_ApplyFailuresClearMarkersAndSetBanner(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantBanner string
	}{
		{name: "bad request", err: prediction.ErrValidationRejected, wantBanner: "Error loading prediction data"},
		{name: "server error", err: &prediction.TransportError{StatusCode: 500}, wantBanner: "Error loading prediction data (HTTP 500)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newMockPredictor()
			p.responses[1] = responseFor("m1", 13, 9)
			p.errs[2] = tt.err
			s := newSession(t, p, "key")

			_, err := s.Apply(context.Background())
			require.NoError(t, err)
			require.Equal(t, 3, s.MarkerCount())

			require.NoError(t, s.SelectMonth(2))
			out, err := s.Apply(context.Background())
			require.NoError(t, err)
			require.Error(t, out.Err)

			v := s.View()
			assert.Equal(t, tt.wantBanner, v.Banner)
			assert.Zero(t, s.MarkerCount())
			assert.Empty(t, s.Map().Markers)
			assert.Nil(t, v.Summary)
			assert.Equal(t, 2, v.Filter.Query.SelectedMonth, "filter kept for retry")
			assert.Equal(t, pipeline.StageFailed, v.Progress.Stage)
		})
	}
}

func TestSession_LaterApplyWins(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13, 13, 13, 13, 13)
	p.responses[2] = responseFor("m2", 9)
	gate := make(chan struct{})
	p.gates[1] = gate

	s := newSession(t, p, "key")

	slow := make(chan pipeline.Outcome, 1)
	go func() {
		out, _ := s.Apply(context.Background())
		slow <- out
	}()
	require.Equal(t, 1, <-p.started)

	require.NoError(t, s.SelectMonth(2))
	fast, err := s.Apply(context.Background())
	require.NoError(t, err)
	require.NoError(t, fast.Err)
	<-p.started

	close(gate)
	select {
	case out := <-slow:
		assert.True(t, out.Stale())
	case <-time.After(5 * time.Second):
		t.Fatal("slow apply did not finish")
	}

	// identical to a single apply of month 2
	reference := newSession(t, newMockPredictorWith(2, responseFor("m2", 9)), "key")
	require.NoError(t, reference.SelectMonth(2))
	_, err = reference.Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reference.MarkerCount(), s.MarkerCount())
	assert.Equal(t, specs(reference.Map()), specs(s.Map()))

	v := s.View()
	require.NotNil(t, v.Applied)
	assert.Equal(t, 2, v.Applied.Query.SelectedMonth)
	assert.Equal(t, []string{"m2"}, v.Result.Models)
}

func newMockPredictorWith(month int, resp *prediction.Response) *mockPredictor {
	p := newMockPredictor()
	p.responses[month] = resp
	return p
}

func specs(snap maphost.Snapshot) []maphost.MarkerSpec {
	out := make([]maphost.MarkerSpec, 0, len(snap.Markers))
	for _, m := range snap.Markers {
		out = append(out, m.Spec)
	}
	return out
}

func TestSession_UnappliedChanges(t *testing.T) {
	s := newSession(t, newMockPredictor(), "key")

	require.NoError(t, s.SetField(filter.FieldLimit, 10))
	assert.True(t, s.View().HasUnappliedChanges)

	_, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, s.View().HasUnappliedChanges)

	require.NoError(t, s.SelectMonth(4))
	v := s.View()
	assert.True(t, v.HasUnappliedChanges)
	assert.Equal(t, 1, v.Applied.Query.SelectedMonth)
}

func TestSession_SetFieldsIsAtomic(t *testing.T) {
	s := newSession(t, newMockPredictor(), "key")
	before := s.Filter()

	err := s.SetFields(map[filter.Field]any{
		filter.FieldLimit: 50,
		filter.FieldYear:  2020,
	})
	require.ErrorIs(t, err, filter.ErrDerivedField)
	assert.Equal(t, before, s.Filter())

	err = s.SetFields(map[filter.Field]any{
		filter.FieldLimit:         50,
		filter.FieldSelectedMonth: 10,
		filter.FieldZones:         "MAC,SB",
	})
	require.NoError(t, err)

	got := s.Filter()
	assert.Equal(t, 50, got.Query.Limit)
	assert.Equal(t, 2024, got.Query.Year)
	assert.Equal(t, []string{"m10"}, got.Query.Models)
	assert.Equal(t, []string{"MAC", "SB"}, got.Query.Zones)
}

func TestSession_FocusAndReset(t *testing.T) {
	s := newSession(t, newMockPredictor(), "key")

	require.NoError(t, s.FocusZone("MAC"))

	center, _ := zone.Center("MAC")
	view := s.Map().View
	assert.Equal(t, center, view.Center)
	assert.Equal(t, zone.FocusZoom, view.Zoom)
	assert.Equal(t, "MAC", s.Filter().FocusedZone)
	assert.Equal(t, []string{"MAC"}, s.Filter().Query.Zones)

	require.NoError(t, s.ResetZoneFocus())
	assert.Equal(t, zone.DefaultView, s.Map().View)
	assert.Empty(t, s.Filter().FocusedZone)
	assert.Equal(t, zone.DefaultNames(), s.Filter().Query.Zones)
}

func TestSession_FocusUnknownZoneLeavesMap(t *testing.T) {
	s := newSession(t, newMockPredictor(), "key")
	before := s.Map().View

	require.NoError(t, s.FocusZone("NEWZONE"))

	assert.Equal(t, before, s.Map().View)
	assert.Equal(t, []string{"NEWZONE"}, s.Filter().Query.Zones)
}

func TestSession_FocusedApplyAddsPlantMarker(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13)
	s := newSession(t, p, "key")

	require.NoError(t, s.FocusZone("MAC"))
	_, err := s.Apply(context.Background())
	require.NoError(t, err)

	kinds := map[maphost.MarkerKind]int{}
	for _, m := range s.Map().Markers {
		kinds[m.Spec.Kind]++
	}
	assert.Equal(t, 1, kinds[maphost.KindPlant])
	assert.Equal(t, 1, kinds[maphost.KindZone])
	assert.Equal(t, 1, kinds[maphost.KindPoint])
}

func TestSession_MapUnavailable(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13)
	s := newSession(t, p, "")

	v := s.View()
	assert.False(t, v.MapAvailable)
	assert.Equal(t, prediction.MessageMapUnavailable, v.Banner)

	require.NoError(t, s.FocusZone("MAC"), "focus still updates the filter")
	assert.Equal(t, "MAC", s.Filter().FocusedZone)

	out, err := s.Apply(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, out.Err, prediction.ErrMapUnavailable)
	assert.Equal(t, prediction.MessageMapUnavailable, s.View().Banner)
	assert.Zero(t, s.MarkerCount())
}

func TestSession_MapUnavailableBannerSurvivesApply(t *testing.T) {
	p := newMockPredictor()
	p.errs[2] = &prediction.TransportError{StatusCode: 500}
	s := newSession(t, p, "")

	out, err := s.Apply(context.Background())
	require.NoError(t, err)
	require.NoError(t, out.Err, "an empty result places no marker")
	assert.Equal(t, prediction.MessageMapUnavailable, s.View().Banner)

	require.NoError(t, s.SelectMonth(2))
	out, err = s.Apply(context.Background())
	require.NoError(t, err)
	require.Error(t, out.Err)

	banner := s.View().Banner
	assert.Contains(t, banner, prediction.MessageMapUnavailable)
	assert.Contains(t, banner, "Error loading prediction data (HTTP 500)")
}

func TestSession_OpenPopup(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13, 9)
	s := newSession(t, p, "key")

	_, err := s.Apply(context.Background())
	require.NoError(t, err)

	markers := s.Map().Markers
	require.Len(t, markers, 3)
	require.NoError(t, s.OpenPopup(markers[1].ID))
	require.NoError(t, s.OpenPopup(markers[2].ID))

	snap := s.Map()
	assert.False(t, snap.Markers[0].PopupOpen)
	assert.True(t, snap.Markers[1].PopupOpen)
	assert.True(t, snap.Markers[2].PopupOpen)

	assert.ErrorIs(t, s.OpenPopup("mkr_nope"), maphost.ErrMarkerNotFound)
}

func TestSession_Teardown(t *testing.T) {
	p := newMockPredictor()
	p.responses[1] = responseFor("m1", 13, 9)
	s := newSession(t, p, "key")

	_, err := s.Apply(context.Background())
	require.NoError(t, err)
	require.NotZero(t, s.MarkerCount())

	require.NoError(t, s.Teardown())
	assert.Zero(t, s.MarkerCount())
	assert.Empty(t, s.Map().Markers)
	require.NoError(t, s.Teardown())

	_, err = s.Apply(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrSessionClosed)
	assert.ErrorIs(t, s.SelectMonth(2), dashboard.ErrSessionClosed)
	assert.ErrorIs(t, s.FocusZone("MAC"), dashboard.ErrSessionClosed)
}

func TestSession_RestoresRecord(t *testing.T) {
	state, err := filter.ApplyMonthSelection(filter.Default(), 11)
	require.NoError(t, err)
	state, _, _, err = filter.FocusZone(state, "MPK")
	require.NoError(t, err)

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := dashboard.NewSession(dashboard.SessionConfig{
		ID:             "ses_restored",
		Predictor:      newMockPredictor(),
		MapProviderKey: "key",
		Record: &dashboard.Record{
			ID:        "ses_restored",
			Filter:    state,
			Applied:   &state,
			CreatedAt: created,
			UpdatedAt: created,
		},
		Logger: zerolog.Nop(),
	})

	v := s.View()
	assert.Equal(t, state, v.Filter)
	assert.False(t, v.HasUnappliedChanges)
	assert.Equal(t, created, v.CreatedAt)

	center, _ := zone.Center("MPK")
	assert.Equal(t, center, s.Map().View.Center)
}
