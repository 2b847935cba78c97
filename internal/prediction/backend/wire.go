package backend

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/canemap/canemap/internal/prediction"
)

// API request/response types (prediction backend JSON contract).

type predictRequest struct {
	Year         int      `json:"year"`
	StartMonth   int      `json:"start_month"`
	EndMonth     int      `json:"end_month"`
	Models       []string `json:"models"`
	Zones        string   `json:"zones"`
	Limit        int      `json:"limit"`
	GroupByLevel *bool    `json:"group_by_level,omitempty"`
}

func newPredictRequest(q prediction.Query) predictRequest {
	req := predictRequest{
		Year:       q.Year,
		StartMonth: q.StartMonth,
		EndMonth:   q.EndMonth,
		Models:     q.Models,
		Zones:      q.ZonesCSV(),
		Limit:      q.Limit,
	}
	if req.Models == nil {
		req.Models = []string{}
	}
	if q.GroupByLevel {
		grouped := true
		req.GroupByLevel = &grouped
	}
	return req
}

type predictResponse struct {
	Results  []resultSet `json:"results"`
	Cached   bool        `json:"cached,omitempty"`
	CacheKey string      `json:"cache_key,omitempty"`
}

type resultSet struct {
	ModelName      string          `json:"model_name"`
	OverallAverage float64         `json:"overall_average"`
	ZoneStatistics []zoneStatistic `json:"zone_statistics"`
	Predictions    []record        `json:"predictions"`
	GroupedByLevel []levelGroup    `json:"grouped_by_level"`
}

type zoneStatistic struct {
	Zone             string  `json:"zone"`
	Model            string  `json:"model"`
	TotalCount       int     `json:"total_count"`
	HighCount        int     `json:"high_count"`
	MediumCount      int     `json:"medium_count"`
	LowCount         int     `json:"low_count"`
	HighPercentage   float64 `json:"high_percentage"`
	MediumPercentage float64 `json:"medium_percentage"`
	LowPercentage    float64 `json:"low_percentage"`
	Average          float64 `json:"average_prediction"`
}

type levelGroup struct {
	Level   flexString `json:"level"`
	Records []record   `json:"records"`
}

type record struct {
	Lat             float64    `json:"lat"`
	Lon             float64    `json:"lon"`
	Prediction      float64    `json:"prediction"`
	LowerBound      float64    `json:"lower_bound"`
	UpperBound      float64    `json:"upper_bound"`
	Zone            string     `json:"zone"`
	PlantID         flexString `json:"plant_id"`
	CaneType        string     `json:"cane_type"`
	VegetationIndex indices    `json:"vegetation_indices"`
}

type indices struct {
	NDVI            *float64 `json:"ndvi"`
	NDWI            *float64 `json:"ndwi"`
	GLI             *float64 `json:"gli"`
	CIGreen         *float64 `json:"cigreen"`
	PVR             *float64 `json:"pvr"`
	Temperature     *float64 `json:"tempt"`
	SoilTemperature *float64 `json:"soil_tempt"`
	SolarRadiation  *float64 `json:"solar_radiation"`
	SoilMoisture    *float64 `json:"soil_moizure"`
	Precipitation   *float64 `json:"precipitation"`
}

// flexString accepts either a JSON string or a JSON number. Plant ids and
// levels come back numeric from some backend models.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

func (r *predictResponse) toDomain() *prediction.Response {
	out := &prediction.Response{
		Results:  make([]prediction.ResultSet, 0, len(r.Results)),
		Cached:   r.Cached,
		CacheKey: r.CacheKey,
	}
	for i := range r.Results {
		out.Results = append(out.Results, r.Results[i].toDomain())
	}
	return out
}

func (rs *resultSet) toDomain() prediction.ResultSet {
	out := prediction.ResultSet{
		ModelName:      rs.ModelName,
		OverallAverage: rs.OverallAverage,
		ZoneStatistics: make([]prediction.ZoneStatistic, 0, len(rs.ZoneStatistics)),
	}

	for _, z := range rs.ZoneStatistics {
		model := z.Model
		if model == "" {
			model = rs.ModelName
		}
		out.ZoneStatistics = append(out.ZoneStatistics, prediction.ZoneStatistic{
			Zone:          z.Zone,
			Model:         model,
			Total:         z.TotalCount,
			HighCount:     z.HighCount,
			MediumCount:   z.MediumCount,
			LowCount:      z.LowCount,
			HighPercent:   z.HighPercentage,
			MediumPercent: z.MediumPercentage,
			LowPercent:    z.LowPercentage,
			Average:       z.Average,
		})
	}

	if len(rs.GroupedByLevel) > 0 {
		out.GroupedByLevel = make([]prediction.LevelGroup, 0, len(rs.GroupedByLevel))
		for _, g := range rs.GroupedByLevel {
			out.GroupedByLevel = append(out.GroupedByLevel, prediction.LevelGroup{
				Level:   string(g.Level),
				Records: toRecords(g.Records),
			})
		}
		return out
	}

	out.Predictions = toRecords(rs.Predictions)
	return out
}

func toRecords(in []record) []prediction.PredictionRecord {
	out := make([]prediction.PredictionRecord, 0, len(in))
	for i := range in {
		r := &in[i]
		out = append(out, prediction.PredictionRecord{
			Lat:             r.Lat,
			Lon:             r.Lon,
			PredictionValue: r.Prediction,
			LowerBound:      r.LowerBound,
			UpperBound:      r.UpperBound,
			Zone:            r.Zone,
			PlantID:         string(r.PlantID),
			CaneType:        r.CaneType,
			Indices: prediction.VegetationIndices{
				NDVI:            r.VegetationIndex.NDVI,
				NDWI:            r.VegetationIndex.NDWI,
				GLI:             r.VegetationIndex.GLI,
				CIGreen:         r.VegetationIndex.CIGreen,
				PVR:             r.VegetationIndex.PVR,
				Temperature:     r.VegetationIndex.Temperature,
				SoilTemperature: r.VegetationIndex.SoilTemperature,
				SolarRadiation:  r.VegetationIndex.SolarRadiation,
				SoilMoisture:    r.VegetationIndex.SoilMoisture,
				Precipitation:   r.VegetationIndex.Precipitation,
			},
		})
	}
	return out
}
