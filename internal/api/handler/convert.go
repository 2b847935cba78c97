package handler

import (
	"slices"

	"github.com/canemap/canemap/internal/api/models"
	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/pipeline"
	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

func toLatLng(p prediction.LatLng) models.LatLng {
	return models.LatLng{Lat: p.Lat, Lng: p.Lng}
}

func toCamera(v zone.View) models.Camera {
	return models.Camera{Center: toLatLng(v.Center), Zoom: v.Zoom, Layer: string(v.Layer)}
}

func toFilter(s filter.State) models.Filter {
	q := s.Query
	return models.Filter{
		Year:          q.Year,
		StartMonth:    q.StartMonth,
		EndMonth:      q.EndMonth,
		SelectedMonth: q.SelectedMonth,
		Models:        nonNil(q.Models),
		Zones:         nonNil(q.Zones),
		Limit:         q.Limit,
		GroupByLevel:  q.GroupByLevel,
		FocusedZone:   s.FocusedZone,
	}
}

func toProgress(p pipeline.Progress) models.Progress {
	stage := p.Stage
	if stage == "" {
		stage = pipeline.StageIdle
	}
	return models.Progress{Seq: p.Seq, Stage: string(stage), Percent: p.Percent}
}

func toLegend() []models.LegendEntry {
	entries := prediction.Legend()
	out := make([]models.LegendEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.LegendEntry{
			Band:    e.Label,
			Range:   e.Range,
			Color:   e.Color,
			IconURL: e.IconURL,
		})
	}
	return out
}

func toSession(v dashboard.View) models.Session {
	out := models.Session{
		ID:                  v.ID,
		Filter:              toFilter(v.Filter),
		HasUnappliedChanges: v.HasUnappliedChanges,
		Progress:            toProgress(v.Progress),
		Banner:              v.Banner,
		Legend:              toLegend(),
		MapAvailable:        v.MapAvailable,
		CreatedAt:           models.Timestamp(v.CreatedAt),
		UpdatedAt:           models.Timestamp(v.UpdatedAt),
	}
	if v.Applied != nil {
		applied := toFilter(*v.Applied)
		out.Applied = &applied
	}
	if s := v.Summary; s != nil {
		out.Summary = &models.BandSummary{
			Total:         s.Total,
			HighCount:     s.HighCount,
			MediumCount:   s.MediumCount,
			LowCount:      s.LowCount,
			HighPercent:   s.HighPercent,
			MediumPercent: s.MediumPercent,
			LowPercent:    s.LowPercent,
			Average:       s.Average,
		}
	}
	if r := v.Result; r != nil {
		out.Result = toResult(r)
	}
	return out
}

func toResult(r *dashboard.ResultInfo) *models.Result {
	stats := make([]models.ZoneStatistic, 0, len(r.ZoneStats))
	for _, zs := range r.ZoneStats {
		stats = append(stats, models.ZoneStatistic{
			Zone:          zs.Zone,
			Model:         zs.Model,
			Total:         zs.Total,
			HighCount:     zs.HighCount,
			MediumCount:   zs.MediumCount,
			LowCount:      zs.LowCount,
			HighPercent:   zs.HighPercent,
			MediumPercent: zs.MediumPercent,
			LowPercent:    zs.LowPercent,
			Average:       zs.Average,
		})
	}
	return &models.Result{
		Seq:            r.Seq,
		Models:         nonNil(r.Models),
		Averages:       r.Averages,
		ZoneStatistics: stats,
		Points:         r.Points,
		Markers:        r.Markers,
		SkippedZones:   r.Skipped,
		Cached:         r.Cached,
		CacheKey:       r.CacheKey,
		RenderedAt:     models.Timestamp(r.RenderedAt),
	}
}

func toPopup(p *maphost.Popup) *models.Popup {
	if p == nil {
		return nil
	}
	out := &models.Popup{Title: p.Title, Sections: make([]models.PopupSection, 0, len(p.Sections))}
	for _, sec := range p.Sections {
		rows := make([]models.PopupRow, 0, len(sec.Rows))
		for _, row := range sec.Rows {
			rows = append(rows, models.PopupRow{Label: row.Label, Value: row.Value})
		}
		out.Sections = append(out.Sections, models.PopupSection{Heading: sec.Heading, Rows: rows})
	}
	return out
}

func toMarker(m maphost.MarkerState) models.Marker {
	return models.Marker{
		ID:        string(m.ID),
		Kind:      string(m.Spec.Kind),
		Position:  toLatLng(m.Spec.Position),
		Icon:      models.Icon{URL: m.Spec.Icon.URL, Color: m.Spec.Icon.Color},
		Label:     m.Spec.Label,
		Title:     m.Spec.Title,
		Popup:     toPopup(m.Popup),
		PopupOpen: m.PopupOpen,
	}
}

func toMapView(s maphost.Snapshot) models.MapView {
	markers := make([]models.Marker, 0, len(s.Markers))
	for _, m := range s.Markers {
		markers = append(markers, toMarker(m))
	}
	return models.MapView{
		Available:   s.Available,
		ProviderKey: s.ProviderKey,
		Camera:      toCamera(s.View),
		Version:     s.Version,
		Markers:     markers,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
