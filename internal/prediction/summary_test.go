package prediction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canemap/canemap/internal/prediction"
)

func TestSummarize(t *testing.T) {
	records := []prediction.PredictionRecord{
		{PredictionValue: 13},
		{PredictionValue: 12},
		{PredictionValue: 11},
		{PredictionValue: 9},
	}

	s := prediction.Summarize(records)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.HighCount)
	assert.Equal(t, 2, s.MediumCount)
	assert.Equal(t, 1, s.LowCount)
	assert.Equal(t, 25.0, s.HighPercent)
	assert.Equal(t, 50.0, s.MediumPercent)
	assert.Equal(t, 25.0, s.LowPercent)
	assert.Equal(t, 11.25, s.Average)
	assert.Equal(t, 2, s.Count(prediction.BandMedium))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, prediction.BandSummary{}, prediction.Summarize(nil))
}

func TestResultSet_PointsFlattensGroups(t *testing.T) {
	rs := prediction.ResultSet{
		GroupedByLevel: []prediction.LevelGroup{
			{Level: "a", Records: []prediction.PredictionRecord{{PlantID: "1"}, {PlantID: "2"}}},
			{Level: "b", Records: []prediction.PredictionRecord{{PlantID: "3"}}},
		},
	}

	points := rs.Points()

	assert.Equal(t, []string{"1", "2", "3"}, []string{points[0].PlantID, points[1].PlantID, points[2].PlantID})
}

func TestQuery_CloneIsDeep(t *testing.T) {
	q := prediction.Query{Zones: []string{"SB", "MAC"}, Models: []string{"m1"}}

	c := q.Clone()
	c.Zones[0] = "MPV"
	c.Models[0] = "m2"

	assert.Equal(t, "SB,MAC", q.ZonesCSV())
	assert.Equal(t, []string{"m1"}, q.Models)
}
