package prediction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canemap/canemap/internal/prediction"
)

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSample_IdentityWhenWithinCap(t *testing.T) {
	records := sequence(10)

	assert.Equal(t, records, prediction.Sample(records, 10))
	assert.Equal(t, records, prediction.Sample(records, 1000))
	assert.Empty(t, prediction.Sample([]int{}, 5))
}

func TestSample_StepsByCeil(t *testing.T) {
	records := sequence(2500)

	out := prediction.Sample(records, 1000)

	require.Len(t, out, 834)
	assert.Equal(t, 0, out[0])
	assert.Equal(t, 3, out[1])
	assert.Equal(t, 2499, out[len(out)-1])
	for i := 1; i < len(out); i++ {
		assert.Equal(t, out[i-1]+3, out[i])
	}
}

func TestSample_NeverExceedsCap(t *testing.T) {
	for n := 1; n <= 300; n += 7 {
		for maxCount := 1; maxCount <= 50; maxCount += 3 {
			out := prediction.Sample(sequence(n), maxCount)
			if n <= maxCount {
				assert.Len(t, out, n)
				continue
			}
			assert.LessOrEqual(t, len(out), maxCount, "n=%d max=%d", n, maxCount)
		}
	}
}

func TestSample_NonPositiveCap(t *testing.T) {
	assert.Empty(t, prediction.Sample(sequence(5), 0))
	assert.Empty(t, prediction.Sample(sequence(5), -1))
}

func TestSampleResultSet_Grouped(t *testing.T) {
	records := make([]prediction.PredictionRecord, 25)
	for i := range records {
		records[i] = prediction.PredictionRecord{PlantID: string(rune('a' + i))}
	}
	rs := prediction.ResultSet{
		ModelName: "m1",
		GroupedByLevel: []prediction.LevelGroup{
			{Level: "high", Records: records},
			{Level: "low", Records: records[:3]},
		},
	}

	out := prediction.SampleResultSet(rs, 10)

	require.Len(t, out.GroupedByLevel, 2)
	assert.Len(t, out.GroupedByLevel[0].Records, 9)
	assert.Len(t, out.GroupedByLevel[1].Records, 3)
	assert.Len(t, rs.GroupedByLevel[0].Records, 25, "input must not be modified")
	assert.Len(t, out.Points(), 12)
}
