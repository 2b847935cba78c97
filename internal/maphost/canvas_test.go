package maphost_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

func newCanvas() *maphost.Canvas {
	return maphost.NewCanvas(maphost.CanvasConfig{ProviderKey: "test-key"})
}

func TestCanvas_PlaceAndRemove(t *testing.T) {
	c := newCanvas()

	first, err := c.PlaceMarker(maphost.MarkerSpec{Kind: maphost.KindZone, Title: "SB"})
	require.NoError(t, err)
	second, err := c.PlaceMarker(maphost.MarkerSpec{Kind: maphost.KindPoint, Title: "p1"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(first), "mkr_"))
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, c.MarkerCount())

	snap := c.Snapshot()
	require.Len(t, snap.Markers, 2)
	assert.Equal(t, first, snap.Markers[0].ID)
	assert.Equal(t, second, snap.Markers[1].ID)

	require.NoError(t, c.RemoveMarker(first))
	assert.Equal(t, 1, c.MarkerCount())
	assert.ErrorIs(t, c.RemoveMarker(first), maphost.ErrMarkerNotFound)
}

func TestCanvas_Popups(t *testing.T) {
	c := newCanvas()

	a, err := c.PlaceMarker(maphost.MarkerSpec{Title: "a"})
	require.NoError(t, err)
	b, err := c.PlaceMarker(maphost.MarkerSpec{Title: "b"})
	require.NoError(t, err)

	assert.ErrorIs(t, c.OpenPopup(a), maphost.ErrNoPopup)

	require.NoError(t, c.AttachPopup(a, maphost.Popup{Title: "A"}))
	require.NoError(t, c.AttachPopup(b, maphost.Popup{Title: "B"}))

	require.NoError(t, c.OpenPopup(a))
	require.NoError(t, c.OpenPopup(b))

	snap := c.Snapshot()
	require.Len(t, snap.Markers, 2)
	assert.True(t, snap.Markers[0].PopupOpen, "opening b keeps a open")
	assert.True(t, snap.Markers[1].PopupOpen)
	assert.Equal(t, "A", snap.Markers[0].Popup.Title)

	assert.ErrorIs(t, c.OpenPopup("mkr_missing"), maphost.ErrMarkerNotFound)
	assert.ErrorIs(t, c.AttachPopup("mkr_missing", maphost.Popup{}), maphost.ErrMarkerNotFound)
}

func TestCanvas_Camera(t *testing.T) {
	c := newCanvas()
	assert.Equal(t, zone.DefaultView, c.Snapshot().View)

	center := prediction.LatLng{Lat: 1, Lng: 2}
	require.NoError(t, c.PanTo(center))
	require.NoError(t, c.SetZoom(11))

	view := c.Snapshot().View
	assert.Equal(t, center, view.Center)
	assert.Equal(t, 11, view.Zoom)
	assert.Equal(t, zone.LayerSatellite, view.Layer)

	require.NoError(t, c.SetView(zone.DefaultView))
	assert.Equal(t, zone.DefaultView, c.Snapshot().View)
}

func TestCanvas_VersionAdvances(t *testing.T) {
	c := newCanvas()
	v0 := c.Snapshot().Version

	id, err := c.PlaceMarker(maphost.MarkerSpec{})
	require.NoError(t, err)
	v1 := c.Snapshot().Version
	assert.Greater(t, v1, v0)

	require.NoError(t, c.RemoveMarker(id))
	assert.Greater(t, c.Snapshot().Version, v1)
}

func TestCanvas_Unavailable(t *testing.T) {
	c := maphost.NewCanvas(maphost.CanvasConfig{})

	assert.False(t, c.Available())

	_, err := c.PlaceMarker(maphost.MarkerSpec{})
	assert.ErrorIs(t, err, prediction.ErrMapUnavailable)
	assert.ErrorIs(t, c.PanTo(prediction.LatLng{}), prediction.ErrMapUnavailable)
	assert.ErrorIs(t, c.SetZoom(3), prediction.ErrMapUnavailable)
	assert.ErrorIs(t, c.SetView(zone.DefaultView), prediction.ErrMapUnavailable)

	snap := c.Snapshot()
	assert.False(t, snap.Available)
	assert.Empty(t, snap.Markers)
	assert.Equal(t, zone.DefaultView, snap.View)
}
