// Package maphost adapts the mapping SDK to the dashboard.
//
// Host is the capability set the overlay needs. Canvas is the in-process
// implementation: it keeps the marker collection and camera of one session
// and is mirrored onto the SDK by the browser client.
package maphost

import (
	"errors"

	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// Errors returned by hosts.
var (
	ErrMarkerNotFound = errors.New("marker not found")
	ErrNoPopup        = errors.New("marker has no popup")
)

// MarkerID identifies a marker placed on a host.
type MarkerID string

// MarkerKind distinguishes the artifacts the overlay draws.
type MarkerKind string

const (
	KindZone  MarkerKind = "zone"
	KindPoint MarkerKind = "point"
	KindPlant MarkerKind = "plant"
)

// Icon is the marker image.
type Icon struct {
	URL   string
	Color string
}

// MarkerSpec describes a marker to place.
type MarkerSpec struct {
	Kind     MarkerKind
	Position prediction.LatLng
	Icon     Icon
	Label    string
	Title    string
}

// PopupRow is a label/value line in a popup.
type PopupRow struct {
	Label string
	Value string
}

// PopupSection groups rows under an optional heading.
type PopupSection struct {
	Heading string
	Rows    []PopupRow
}

// Popup is a structured info window. Rendering to markup is the client's job.
type Popup struct {
	Title    string
	Sections []PopupSection
}

// Host is the mapping SDK capability set.
type Host interface {
	PlaceMarker(spec MarkerSpec) (MarkerID, error)
	AttachPopup(id MarkerID, popup Popup) error
	RemoveMarker(id MarkerID) error
	PanTo(center prediction.LatLng) error
	SetZoom(zoom int) error
}

// Camera is implemented by hosts that can switch the whole view at once.
type Camera interface {
	SetView(view zone.View) error
}
