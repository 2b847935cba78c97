// Package zone holds the catalog of sugarcane growing zones and the default
// map view.
package zone

import (
	"slices"

	"github.com/canemap/canemap/internal/prediction"
)

// FocusZoom is the zoom level used when the map is focused on one zone.
const FocusZoom = 11

// Zone is a named growing area with the coordinate of its mill.
type Zone struct {
	Name   string
	Center prediction.LatLng
}

// catalog lists the known zones in display order.
var catalog = []Zone{
	{Name: "SB", Center: prediction.LatLng{Lat: 14.86250407773616, Lng: 106.3585499327103}},
	{Name: "MPDC", Center: prediction.LatLng{Lat: 14.84514, Lng: 99.75922}},
	{Name: "MAC", Center: prediction.LatLng{Lat: 15.828701000429223, Lng: 104.47471520283926}},
	{Name: "MPV", Center: prediction.LatLng{Lat: 16.67827120388637, Lng: 102.44576336099253}},
	{Name: "MPL", Center: prediction.LatLng{Lat: 7.067065149704857, Lng: 117.59963900704362}},
	{Name: "MPK", Center: prediction.LatLng{Lat: 16.4840064769643, Lng: 102.1212705588527}},
	{Name: "MKS", Center: prediction.LatLng{Lat: 16.462588608501633, Lng: 104.04029264983633}},
	{Name: "MPKB", Center: prediction.LatLng{Lat: 16.096672809152835, Lng: 101.87271858619893}},
}

// LayerType is a base map style.
type LayerType string

// Supported base layers.
const (
	LayerSatellite LayerType = "satellite"
	LayerRoadmap   LayerType = "roadmap"
	LayerHybrid    LayerType = "hybrid"
	LayerTerrain   LayerType = "terrain"
)

// View is a map camera position.
type View struct {
	Center prediction.LatLng
	Zoom   int
	Layer  LayerType
}

// DefaultView is the country-wide view shown on load and after a focus reset.
var DefaultView = View{
	Center: prediction.LatLng{Lat: 15.87, Lng: 100.9925},
	Zoom:   8,
	Layer:  LayerSatellite,
}

// All returns the catalog in display order.
func All() []Zone {
	return slices.Clone(catalog)
}

// DefaultNames returns the zone names selected when a session starts.
func DefaultNames() []string {
	names := make([]string, 0, len(catalog))
	for _, z := range catalog {
		names = append(names, z.Name)
	}
	return names
}

// Lookup returns the zone with the given name.
func Lookup(name string) (Zone, bool) {
	for _, z := range catalog {
		if z.Name == name {
			return z, true
		}
	}
	return Zone{}, false
}

// Center returns the mill coordinate of a zone. Unknown zones have no center.
func Center(name string) (prediction.LatLng, bool) {
	z, ok := Lookup(name)
	if !ok {
		return prediction.LatLng{}, false
	}
	return z.Center, true
}
