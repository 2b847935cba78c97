package prediction

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// BandSummary counts rendered points per band.
type BandSummary struct {
	Total         int
	HighCount     int
	MediumCount   int
	LowCount      int
	HighPercent   float64
	MediumPercent float64
	LowPercent    float64
	Average       float64
}

// Count returns the number of points in band b.
func (s BandSummary) Count(b Band) int {
	switch b {
	case BandHigh:
		return s.HighCount
	case BandMedium:
		return s.MediumCount
	default:
		return s.LowCount
	}
}

// Summarize classifies every record and aggregates the result.
func Summarize(records []PredictionRecord) BandSummary {
	var s BandSummary
	if len(records) == 0 {
		return s
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.PredictionValue
		switch Classify(r.PredictionValue) {
		case BandHigh:
			s.HighCount++
		case BandMedium:
			s.MediumCount++
		default:
			s.LowCount++
		}
	}

	s.Total = len(records)
	s.Average = round2(stat.Mean(values, nil))
	s.HighPercent = percent(s.HighCount, s.Total)
	s.MediumPercent = percent(s.MediumCount, s.Total)
	s.LowPercent = percent(s.LowCount, s.Total)
	return s
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
