package handler

import (
	"net/http"

	"github.com/canemap/canemap/internal/api/models"
	"github.com/canemap/canemap/internal/api/response"
	"github.com/canemap/canemap/internal/filter"
	"github.com/canemap/canemap/internal/zone"
)

// MetadataHandler serves the static catalogs of the dashboard.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// ListZones handles GET /v1/metadata/zones.
func (h *MetadataHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones := zone.All()
	catalog := models.ZoneCatalog{
		Zones:       make([]models.Zone, 0, len(zones)),
		DefaultView: toCamera(zone.DefaultView),
		FocusZoom:   zone.FocusZoom,
	}
	for _, z := range zones {
		catalog.Zones = append(catalog.Zones, models.Zone{Name: z.Name, Center: toLatLng(z.Center)})
	}
	response.JSON(w, r, http.StatusOK, catalog)
}

// ListMonths handles GET /v1/metadata/months.
func (h *MetadataHandler) ListMonths(w http.ResponseWriter, r *http.Request) {
	entries := filter.Months()
	months := make([]models.Month, 0, len(entries))
	for _, m := range entries {
		months = append(months, models.Month{Month: m.Month, Year: m.Year, Model: m.Model, Label: m.Label})
	}
	response.JSON(w, r, http.StatusOK, months)
}

// GetLegend handles GET /v1/metadata/legend.
func (h *MetadataHandler) GetLegend(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toLegend())
}
