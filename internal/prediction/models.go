// Package prediction provides the crop-yield prediction data model together
// with the band classifier and the render sampler shared by the dashboard.
package prediction

import (
	"slices"
	"strings"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Query is a prediction request as edited by the analyst.
// Models is derived from SelectedMonth and must never be set on its own.
type Query struct {
	Year          int
	StartMonth    int
	EndMonth      int
	SelectedMonth int
	Models        []string
	Zones         []string
	Limit         int
	GroupByLevel  bool
}

// ZonesCSV returns the zones joined with commas, in order.
func (q Query) ZonesCSV() string {
	return strings.Join(q.Zones, ",")
}

// Clone returns a deep copy of the query.
func (q Query) Clone() Query {
	cpy := q
	cpy.Models = slices.Clone(q.Models)
	cpy.Zones = slices.Clone(q.Zones)
	return cpy
}

// VegetationIndices holds the per-point remote sensing and climate readings.
// A nil field means the backend did not report the index.
type VegetationIndices struct {
	NDVI            *float64
	NDWI            *float64
	GLI             *float64
	CIGreen         *float64
	PVR             *float64
	Temperature     *float64
	SoilTemperature *float64
	SolarRadiation  *float64
	SoilMoisture    *float64
	Precipitation   *float64
}

// PredictionRecord is one georeferenced prediction. Records are immutable
// once received.
type PredictionRecord struct {
	Lat             float64
	Lon             float64
	PredictionValue float64
	LowerBound      float64
	UpperBound      float64
	Zone            string
	PlantID         string
	CaneType        string
	Indices         VegetationIndices
}

// Position returns the record coordinate.
func (r PredictionRecord) Position() LatLng {
	return LatLng{Lat: r.Lat, Lng: r.Lon}
}

// ZoneStatistic is a server-side aggregate for one zone and model.
type ZoneStatistic struct {
	Zone          string
	Model         string
	Total         int
	HighCount     int
	MediumCount   int
	LowCount      int
	HighPercent   float64
	MediumPercent float64
	LowPercent    float64
	Average       float64
}

// LevelGroup is a set of records sharing one prediction level.
type LevelGroup struct {
	Level   string
	Records []PredictionRecord
}

// ResultSet is the per-model bundle returned by the backend.
// Exactly one of Predictions and GroupedByLevel is populated.
type ResultSet struct {
	ModelName      string
	OverallAverage float64
	ZoneStatistics []ZoneStatistic
	Predictions    []PredictionRecord
	GroupedByLevel []LevelGroup
}

// Grouped reports whether the result set carries level groups.
func (r *ResultSet) Grouped() bool {
	return len(r.GroupedByLevel) > 0
}

// Points returns every record of the result set in backend order.
// Level groups are flattened group by group.
func (r *ResultSet) Points() []PredictionRecord {
	if !r.Grouped() {
		return r.Predictions
	}

	total := 0
	for _, g := range r.GroupedByLevel {
		total += len(g.Records)
	}

	points := make([]PredictionRecord, 0, total)
	for _, g := range r.GroupedByLevel {
		points = append(points, g.Records...)
	}
	return points
}

// Response is a successful backend answer to one query.
type Response struct {
	Results  []ResultSet
	Cached   bool
	CacheKey string
}

// PointCount returns the number of records across all result sets.
func (r *Response) PointCount() int {
	n := 0
	for i := range r.Results {
		n += len(r.Results[i].Points())
	}
	return n
}
