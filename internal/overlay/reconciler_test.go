package overlay_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/overlay"
	"github.com/canemap/canemap/internal/prediction"
)

// mockHost records every call and can fail placement after N markers.
type mockHost struct {
	mu        sync.Mutex
	live      map[maphost.MarkerID]maphost.MarkerSpec
	popups    map[maphost.MarkerID]maphost.Popup
	placed    int
	removed   int
	failAfter int
	seq       int
}

func newMockHost() *mockHost {
	return &mockHost{
		live:      make(map[maphost.MarkerID]maphost.MarkerSpec),
		popups:    make(map[maphost.MarkerID]maphost.Popup),
		failAfter: -1,
	}
}

func (m *mockHost) PlaceMarker(spec maphost.MarkerSpec) (maphost.MarkerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && m.placed >= m.failAfter {
		return "", prediction.ErrMapUnavailable
	}
	m.seq++
	id := maphost.MarkerID(fmt.Sprintf("m%d", m.seq))
	m.live[id] = spec
	m.placed++
	return id, nil
}

func (m *mockHost) AttachPopup(id maphost.MarkerID, popup maphost.Popup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[id]; !ok {
		return maphost.ErrMarkerNotFound
	}
	m.popups[id] = popup
	return nil
}

func (m *mockHost) RemoveMarker(id maphost.MarkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[id]; !ok {
		return maphost.ErrMarkerNotFound
	}
	delete(m.live, id)
	delete(m.popups, id)
	m.removed++
	return nil
}

func (m *mockHost) PanTo(prediction.LatLng) error { return nil }
func (m *mockHost) SetZoom(int) error             { return nil }

func (m *mockHost) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *mockHost) countKind(kind maphost.MarkerKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, spec := range m.live {
		if spec.Kind == kind {
			n++
		}
	}
	return n
}

func ptr(v float64) *float64 { return &v }

func resultSet(model string, values ...float64) prediction.ResultSet {
	rs := prediction.ResultSet{
		ModelName: model,
		ZoneStatistics: []prediction.ZoneStatistic{
			{Zone: "MAC", Model: model, Total: len(values)},
			{Zone: "UNKNOWN", Model: model},
		},
	}
	for i, v := range values {
		rs.Predictions = append(rs.Predictions, prediction.PredictionRecord{
			Lat:             15 + float64(i)*0.01,
			Lon:             104,
			PredictionValue: v,
			Zone:            "MAC",
		})
	}
	return rs
}

func newReconciler(host maphost.Host) *overlay.Reconciler {
	return overlay.NewReconciler(overlay.Config{Host: host, Logger: zerolog.Nop()})
}

func TestReconciler_PlacesZoneAndPointMarkers(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	res, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13, 11, 9)}})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, 1, res.ZoneMarkers)
	assert.Equal(t, 3, res.PointMarkers)
	assert.Equal(t, []string{"UNKNOWN"}, res.SkippedZones)
	assert.Equal(t, 4, res.Total())
	assert.Equal(t, 4, r.Count())
	assert.Equal(t, 4, host.liveCount())
	assert.Equal(t, 1, host.countKind(maphost.KindZone))
	assert.Equal(t, 3, host.countKind(maphost.KindPoint))
}

func TestReconciler_PointIconsFollowClassifier(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	values := []float64{12.01, 12.0, 10.0, 9.99}
	rs := resultSet("m1", values...)
	rs.ZoneStatistics = nil

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{rs}})
	require.NoError(t, err)

	handles := r.Handles()
	require.Len(t, handles, len(values))

	host.mu.Lock()
	defer host.mu.Unlock()
	for i, h := range handles {
		want := prediction.Classify(values[i])
		spec := host.live[h.ID]
		assert.Equal(t, want.IconURL(), spec.Icon.URL)
		assert.Equal(t, want.Color(), spec.Icon.Color)
		assert.Equal(t, "Prediction: "+want.String(), host.popups[h.ID].Title)
	}
}

func TestReconciler_ReleasesPreviousGeneration(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13, 11, 9)}})
	require.NoError(t, err)

	res, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m2", 13)}})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, 2, host.liveCount())
	assert.Equal(t, 4, host.removed)
	for _, h := range r.Handles() {
		assert.Equal(t, uint64(2), h.Generation)
	}
}

func TestReconciler_GroupedRecords(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	rs := prediction.ResultSet{
		ModelName: "m1",
		GroupedByLevel: []prediction.LevelGroup{
			{Level: "1", Records: []prediction.PredictionRecord{{PredictionValue: 13}}},
			{Level: "2", Records: []prediction.PredictionRecord{{PredictionValue: 9}, {PredictionValue: 11}}},
		},
	}

	res, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{rs}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.PointMarkers)
}

func TestReconciler_FocusedZoneAddsPlantMarker(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	res, err := r.Reconcile(overlay.Input{FocusedZone: "MAC"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PlantMarkers)
	assert.Equal(t, 1, host.countKind(maphost.KindPlant))

	res, err = r.Reconcile(overlay.Input{FocusedZone: "NOWHERE"})
	require.NoError(t, err)
	assert.Zero(t, res.PlantMarkers)
	assert.Zero(t, host.liveCount())
}

func TestReconciler_FailureLeavesNoPartialOverlay(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13)}})
	require.NoError(t, err)

	host.mu.Lock()
	host.failAfter = host.placed + 2
	host.mu.Unlock()

	_, err = r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13, 11, 9)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, prediction.ErrMapUnavailable))
	assert.Zero(t, r.Count())
	assert.Zero(t, host.liveCount())
}

func TestReconciler_ClearAndTeardown(t *testing.T) {
	host := newMockHost()
	r := newReconciler(host)

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13, 9)}})
	require.NoError(t, err)

	require.NoError(t, r.Clear())
	assert.Zero(t, r.Count())
	assert.Zero(t, host.liveCount())
	require.NoError(t, r.Clear())

	_, err = r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13)}})
	require.NoError(t, err)

	require.NoError(t, r.Teardown())
	assert.Zero(t, host.liveCount())

	_, err = r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13)}})
	assert.ErrorIs(t, err, overlay.ErrTornDown)
}

func TestReconciler_WithCanvas(t *testing.T) {
	canvas := maphost.NewCanvas(maphost.CanvasConfig{ProviderKey: "key"})
	r := newReconciler(canvas)

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13, 11)}})
	require.NoError(t, err)
	assert.Equal(t, 3, canvas.MarkerCount())

	snap := canvas.Snapshot()
	for _, m := range snap.Markers {
		require.NotNil(t, m.Popup)
		assert.False(t, m.PopupOpen)
	}

	require.NoError(t, r.Teardown())
	assert.Zero(t, canvas.MarkerCount())
}

func TestReconciler_UnavailableCanvas(t *testing.T) {
	canvas := maphost.NewCanvas(maphost.CanvasConfig{})
	r := newReconciler(canvas)

	_, err := r.Reconcile(overlay.Input{Results: []prediction.ResultSet{resultSet("m1", 13)}})
	require.ErrorIs(t, err, prediction.ErrMapUnavailable)
	assert.Equal(t, prediction.MessageMapUnavailable, prediction.UserMessage(err))
	assert.Zero(t, r.Count())
}

func TestPointPopup_MissingIndices(t *testing.T) {
	rec := prediction.PredictionRecord{
		PredictionValue: 11,
		Zone:            "MAC",
		Indices:         prediction.VegetationIndices{NDVI: ptr(0.5), Precipitation: ptr(0)},
	}

	popup := overlay.PointPopup(rec, "m1")
	require.Len(t, popup.Sections, 2)
	assert.Equal(t, "Prediction: Medium", popup.Title)

	rows := map[string]string{}
	for _, row := range popup.Sections[1].Rows {
		rows[row.Label] = row.Value
	}
	assert.Len(t, rows, 10)
	assert.Equal(t, "0.5000", rows["NDVI"])
	assert.Equal(t, "0.0000", rows["Precipitation"])
	assert.Equal(t, overlay.NotAvailable, rows["NDWI"])
	assert.Equal(t, overlay.NotAvailable, rows["Soil Moisture"])

	header := map[string]string{}
	for _, row := range popup.Sections[0].Rows {
		header[row.Label] = row.Value
	}
	assert.Equal(t, overlay.NotAvailable, header["Plant ID"])
	assert.Equal(t, "11.00", header["Prediction"])
}

func TestZonePopup(t *testing.T) {
	popup := overlay.ZonePopup(prediction.ZoneStatistic{
		Zone: "MAC", Total: 4, HighCount: 1, HighPercent: 25, Average: 11.25,
	}, "m3")

	assert.Equal(t, "Zone: MAC", popup.Title)
	require.Len(t, popup.Sections, 2)
	assert.Equal(t, "m3", popup.Sections[0].Rows[0].Value)
	assert.Equal(t, "11.25", popup.Sections[0].Rows[2].Value)
	assert.Equal(t, "High (> 12.0)", popup.Sections[1].Rows[0].Label)
	assert.Equal(t, "1 (25.0%)", popup.Sections[1].Rows[0].Value)
}
