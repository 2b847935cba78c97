package prediction_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canemap/canemap/internal/prediction"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected prediction.Band
	}{
		{name: "just below low max", value: 9.99, expected: prediction.BandLow},
		{name: "low max is medium", value: 10.0, expected: prediction.BandMedium},
		{name: "middle", value: 11.0, expected: prediction.BandMedium},
		{name: "high min is medium", value: 12.0, expected: prediction.BandMedium},
		{name: "just above high min", value: 12.01, expected: prediction.BandHigh},
		{name: "negative", value: -5, expected: prediction.BandLow},
		{name: "very large", value: 1e9, expected: prediction.BandHigh},
		{name: "positive infinity", value: math.Inf(1), expected: prediction.BandHigh},
		{name: "negative infinity", value: math.Inf(-1), expected: prediction.BandLow},
		{name: "NaN", value: math.NaN(), expected: prediction.BandMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, prediction.Classify(tt.value))
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := prediction.Classify(0)
	for v := 0.0; v <= 20.0; v += 0.05 {
		b := prediction.Classify(v)
		assert.GreaterOrEqual(t, int(b), int(prev), "band must not decrease at %.2f", v)
		prev = b
	}
}

func TestBand_Presentation(t *testing.T) {
	assert.Equal(t, "High", prediction.BandHigh.String())
	assert.Equal(t, "Medium", prediction.BandMedium.String())
	assert.Equal(t, "Low", prediction.BandLow.String())

	assert.Contains(t, prediction.BandHigh.IconURL(), "green-dot")
	assert.Contains(t, prediction.BandMedium.IconURL(), "yellow-dot")
	assert.Contains(t, prediction.BandLow.IconURL(), "red-dot")
}

func TestLegend(t *testing.T) {
	legend := prediction.Legend()

	if assert.Len(t, legend, 3) {
		assert.Equal(t, prediction.BandHigh, legend[0].Band)
		assert.Equal(t, "> 12.0", legend[0].Range)
		assert.Equal(t, prediction.BandMedium, legend[1].Band)
		assert.Equal(t, "10.0 - 12.0", legend[1].Range)
		assert.Equal(t, prediction.BandLow, legend[2].Band)
		assert.Equal(t, "< 10.0", legend[2].Range)
	}
}
