package overlay

import (
	"strconv"

	"github.com/canemap/canemap/internal/maphost"
	"github.com/canemap/canemap/internal/prediction"
)

// NotAvailable is shown for indices the backend did not report.
const NotAvailable = "not available"

// ZonePopup summarizes the server-side statistics of one zone and model.
func ZonePopup(stat prediction.ZoneStatistic, modelName string) maphost.Popup {
	model := stat.Model
	if model == "" {
		model = modelName
	}

	return maphost.Popup{
		Title: "Zone: " + stat.Zone,
		Sections: []maphost.PopupSection{
			{
				Rows: []maphost.PopupRow{
					{Label: "Model", Value: model},
					{Label: "Total", Value: strconv.Itoa(stat.Total)},
					{Label: "Average", Value: formatFloat(stat.Average, 2)},
				},
			},
			{
				Heading: "Bands",
				Rows: []maphost.PopupRow{
					bandRow(prediction.BandHigh, stat.HighCount, stat.HighPercent),
					bandRow(prediction.BandMedium, stat.MediumCount, stat.MediumPercent),
					bandRow(prediction.BandLow, stat.LowCount, stat.LowPercent),
				},
			},
		},
	}
}

// PointPopup renders every attribute of a record. The band label comes from
// the classifier.
func PointPopup(rec prediction.PredictionRecord, modelName string) maphost.Popup {
	band := prediction.Classify(rec.PredictionValue)

	return maphost.Popup{
		Title: "Prediction: " + band.String(),
		Sections: []maphost.PopupSection{
			{
				Rows: []maphost.PopupRow{
					{Label: "Model", Value: modelName},
					{Label: "Zone", Value: orNotAvailable(rec.Zone)},
					{Label: "Plant ID", Value: orNotAvailable(rec.PlantID)},
					{Label: "Cane Type", Value: orNotAvailable(rec.CaneType)},
					{Label: "Prediction", Value: formatFloat(rec.PredictionValue, 2)},
					{Label: "Lower Bound", Value: formatFloat(rec.LowerBound, 2)},
					{Label: "Upper Bound", Value: formatFloat(rec.UpperBound, 2)},
					{Label: "Lat", Value: formatFloat(rec.Lat, 6)},
					{Label: "Lon", Value: formatFloat(rec.Lon, 6)},
				},
			},
			{
				Heading: "Vegetation Indices",
				Rows:    indexRows(rec.Indices),
			},
		},
	}
}

// PlantPopup describes the mill marker of the focused zone.
func PlantPopup(zoneName string, pos prediction.LatLng) maphost.Popup {
	return maphost.Popup{
		Title: "Center Point",
		Sections: []maphost.PopupSection{{
			Rows: []maphost.PopupRow{
				{Label: "Zone", Value: zoneName},
				{Label: "Lat", Value: formatFloat(pos.Lat, 6)},
				{Label: "Lng", Value: formatFloat(pos.Lng, 6)},
			},
		}},
	}
}

func indexRows(idx prediction.VegetationIndices) []maphost.PopupRow {
	return []maphost.PopupRow{
		indexRow("NDVI", idx.NDVI),
		indexRow("NDWI", idx.NDWI),
		indexRow("GLI", idx.GLI),
		indexRow("CIGreen", idx.CIGreen),
		indexRow("PVR", idx.PVR),
		indexRow("Temperature", idx.Temperature),
		indexRow("Soil Temperature", idx.SoilTemperature),
		indexRow("Solar Radiation", idx.SolarRadiation),
		indexRow("Soil Moisture", idx.SoilMoisture),
		indexRow("Precipitation", idx.Precipitation),
	}
}

func indexRow(label string, v *float64) maphost.PopupRow {
	if v == nil {
		return maphost.PopupRow{Label: label, Value: NotAvailable}
	}
	return maphost.PopupRow{Label: label, Value: formatFloat(*v, 4)}
}

func bandRow(b prediction.Band, count int, percent float64) maphost.PopupRow {
	return maphost.PopupRow{
		Label: b.String() + " (" + b.Range() + ")",
		Value: strconv.Itoa(count) + " (" + formatFloat(percent, 1) + "%)",
	}
}

func orNotAvailable(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
