package maphost

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// CanvasConfig holds configuration for a Canvas.
type CanvasConfig struct {
	// ProviderKey is the map provider API key. Without it the canvas is
	// unavailable and every drawing call fails with ErrMapUnavailable.
	ProviderKey string

	// InitialView is the camera on creation (default: zone.DefaultView).
	InitialView *zone.View
}

// Canvas is the server-side map of one session.
type Canvas struct {
	mu          sync.RWMutex
	providerKey string
	view        zone.View
	markers     map[MarkerID]*placedMarker
	nextSeq     uint64
	version     uint64
}

type placedMarker struct {
	seq       uint64
	spec      MarkerSpec
	popup     *Popup
	popupOpen bool
}

// NewCanvas creates a canvas with the initial view.
func NewCanvas(cfg CanvasConfig) *Canvas {
	view := zone.DefaultView
	if cfg.InitialView != nil {
		view = *cfg.InitialView
	}
	return &Canvas{
		providerKey: cfg.ProviderKey,
		view:        view,
		markers:     make(map[MarkerID]*placedMarker),
	}
}

var (
	_ Host   = (*Canvas)(nil)
	_ Camera = (*Canvas)(nil)
)

// Available reports whether the map SDK can be used.
func (c *Canvas) Available() bool {
	return c.providerKey != ""
}

// PlaceMarker adds a marker and returns its id.
func (c *Canvas) PlaceMarker(spec MarkerSpec) (MarkerID, error) {
	if !c.Available() {
		return "", prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := MarkerID("mkr_" + uuid.New().String())
	c.nextSeq++
	c.markers[id] = &placedMarker{seq: c.nextSeq, spec: spec}
	c.version++
	return id, nil
}

// AttachPopup sets the popup content of a marker. The popup starts closed.
func (c *Canvas) AttachPopup(id MarkerID, popup Popup) error {
	if !c.Available() {
		return prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	m.popup = &popup
	m.popupOpen = false
	c.version++
	return nil
}

// RemoveMarker detaches a marker from the map.
func (c *Canvas) RemoveMarker(id MarkerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.markers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	delete(c.markers, id)
	c.version++
	return nil
}

// OpenPopup opens the popup of a marker. Popups already open stay open.
func (c *Canvas) OpenPopup(id MarkerID) error {
	if !c.Available() {
		return prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	if m.popup == nil {
		return fmt.Errorf("%w: %s", ErrNoPopup, id)
	}
	if !m.popupOpen {
		m.popupOpen = true
		c.version++
	}
	return nil
}

// PanTo moves the camera center.
func (c *Canvas) PanTo(center prediction.LatLng) error {
	if !c.Available() {
		return prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Center = center
	c.version++
	return nil
}

// SetZoom changes the zoom level.
func (c *Canvas) SetZoom(zoom int) error {
	if !c.Available() {
		return prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Zoom = zoom
	c.version++
	return nil
}

// SetView replaces the camera center, zoom and layer.
func (c *Canvas) SetView(view zone.View) error {
	if !c.Available() {
		return prediction.ErrMapUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
	c.version++
	return nil
}

// MarkerCount returns the number of markers currently placed.
func (c *Canvas) MarkerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers)
}

// MarkerState is one marker as seen by the client.
type MarkerState struct {
	ID        MarkerID
	Spec      MarkerSpec
	Popup     *Popup
	PopupOpen bool
}

// Snapshot is a consistent copy of the canvas.
type Snapshot struct {
	Available   bool
	ProviderKey string
	View        zone.View
	Version     uint64
	Markers     []MarkerState
}

// Snapshot returns the markers in placement order together with the view.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type ordered struct {
		seq   uint64
		state MarkerState
	}
	list := make([]ordered, 0, len(c.markers))
	for id, m := range c.markers {
		state := MarkerState{ID: id, Spec: m.spec, PopupOpen: m.popupOpen}
		if m.popup != nil {
			p := *m.popup
			p.Sections = slices.Clone(p.Sections)
			state.Popup = &p
		}
		list = append(list, ordered{seq: m.seq, state: state})
	}
	slices.SortFunc(list, func(a, b ordered) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	markers := make([]MarkerState, 0, len(list))
	for _, o := range list {
		markers = append(markers, o.state)
	}

	return Snapshot{
		Available:   c.Available(),
		ProviderKey: c.providerKey,
		View:        c.view,
		Version:     c.version,
		Markers:     markers,
	}
}
