// Package overlay owns every marker the dashboard draws on a map host.
//
// A Reconciler is the only writer of its host's marker collection. Each
// Reconcile call first releases the previous generation, so markers from
// two result sets never coexist.
package overlay

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// ErrTornDown is returned once the reconciler has been torn down.
var ErrTornDown = errors.New("overlay torn down")

// PlantIconURL is the icon of zone and mill markers.
const PlantIconURL = "/manufacturing-plant.png"

// MarkerHandle is the ownership token for one placed marker.
type MarkerHandle struct {
	ID         maphost.MarkerID
	Kind       maphost.MarkerKind
	Generation uint64
}

// Input is one batch to draw.
type Input struct {
	Results []prediction.ResultSet

	// FocusedZone adds a mill marker for that zone when its center is known.
	FocusedZone string
}

// Result describes what a reconciliation placed.
type Result struct {
	Generation   uint64
	ZoneMarkers  int
	PointMarkers int
	PlantMarkers int
	SkippedZones []string
}

// Total returns the number of markers placed.
func (r Result) Total() int {
	return r.ZoneMarkers + r.PointMarkers + r.PlantMarkers
}

// Config holds configuration for a Reconciler.
type Config struct {
	Host    maphost.Host
	Logger  zerolog.Logger
	Metrics *Metrics
}

// Reconciler keeps the arena of marker handles for one host.
type Reconciler struct {
	host    maphost.Host
	logger  zerolog.Logger
	metrics *Metrics

	mu         sync.Mutex
	handles    []MarkerHandle
	generation uint64
	tornDown   bool
}

// NewReconciler creates a reconciler with an empty arena.
func NewReconciler(cfg Config) *Reconciler {
	return &Reconciler{
		host:    cfg.Host,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Clear releases every handle. Removal failures are logged and returned
// joined; the arena is empty afterwards either way.
func (r *Reconciler) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked()
}

// Reconcile replaces the current overlay with markers for in. If placing
// any marker fails, the partial overlay is released and the error returned.
func (r *Reconciler) Reconcile(in Input) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tornDown {
		return Result{}, ErrTornDown
	}

	if err := r.clearLocked(); err != nil {
		r.logger.Warn().Err(err).Msg("releasing previous markers")
	}
	r.generation++

	res, err := r.drawLocked(in)
	if err != nil {
		if clearErr := r.clearLocked(); clearErr != nil {
			r.logger.Warn().Err(clearErr).Msg("releasing partial overlay")
		}
		r.metrics.recordReconcile("failed")
		return Result{Generation: r.generation}, err
	}

	r.metrics.recordReconcile("ok")
	r.logger.Debug().
		Uint64("generation", r.generation).
		Int("zone_markers", res.ZoneMarkers).
		Int("point_markers", res.PointMarkers).
		Int("plant_markers", res.PlantMarkers).
		Msg("overlay reconciled")
	return res, nil
}

// Teardown releases every handle and refuses further reconciliation.
func (r *Reconciler) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tornDown = true
	return r.clearLocked()
}

// Count returns the number of live handles.
func (r *Reconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Generation returns the number of reconciliation cycles started.
func (r *Reconciler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Handles returns a copy of the live handles.
func (r *Reconciler) Handles() []MarkerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MarkerHandle, len(r.handles))
	copy(out, r.handles)
	return out
}

func (r *Reconciler) clearLocked() error {
	if len(r.handles) == 0 {
		return nil
	}

	var errs []error
	for _, h := range r.handles {
		if err := r.host.RemoveMarker(h.ID); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", h.ID, err))
		}
	}
	r.metrics.addMarkers(-len(r.handles))
	r.handles = r.handles[:0]
	return errors.Join(errs...)
}

func (r *Reconciler) drawLocked(in Input) (Result, error) {
	res := Result{Generation: r.generation}

	if in.FocusedZone != "" {
		if center, ok := zone.Center(in.FocusedZone); ok {
			spec := maphost.MarkerSpec{
				Kind:     maphost.KindPlant,
				Position: center,
				Icon:     maphost.Icon{URL: PlantIconURL},
				Title:    "Center",
			}
			if err := r.place(spec, PlantPopup(in.FocusedZone, center)); err != nil {
				return res, err
			}
			res.PlantMarkers++
		}
	}

	for i := range in.Results {
		rs := &in.Results[i]

		for _, stat := range rs.ZoneStatistics {
			center, ok := zone.Center(stat.Zone)
			if !ok {
				r.logger.Warn().
					Str("zone", stat.Zone).
					Str("model", rs.ModelName).
					Msg("skipping zone marker without known center")
				r.metrics.recordSkippedZone()
				res.SkippedZones = append(res.SkippedZones, stat.Zone)
				continue
			}
			spec := maphost.MarkerSpec{
				Kind:     maphost.KindZone,
				Position: center,
				Icon:     maphost.Icon{URL: PlantIconURL},
				Label:    stat.Zone,
				Title:    stat.Zone,
			}
			if err := r.place(spec, ZonePopup(stat, rs.ModelName)); err != nil {
				return res, err
			}
			res.ZoneMarkers++
		}

		for _, rec := range rs.Points() {
			band := prediction.Classify(rec.PredictionValue)
			spec := maphost.MarkerSpec{
				Kind:     maphost.KindPoint,
				Position: rec.Position(),
				Icon:     maphost.Icon{URL: band.IconURL(), Color: band.Color()},
				Title: "Lat: " + strconv.FormatFloat(rec.Lat, 'f', -1, 64) +
					", Lon: " + strconv.FormatFloat(rec.Lon, 'f', -1, 64),
			}
			if err := r.place(spec, PointPopup(rec, rs.ModelName)); err != nil {
				return res, err
			}
			res.PointMarkers++
		}
	}

	return res, nil
}

func (r *Reconciler) place(spec maphost.MarkerSpec, popup maphost.Popup) error {
	id, err := r.host.PlaceMarker(spec)
	if err != nil {
		return fmt.Errorf("place %s marker: %w", spec.Kind, err)
	}
	r.handles = append(r.handles, MarkerHandle{ID: id, Kind: spec.Kind, Generation: r.generation})
	r.metrics.addMarkers(1)

	if err := r.host.AttachPopup(id, popup); err != nil {
		return fmt.Errorf("attach popup to %s: %w", id, err)
	}
	return nil
}
