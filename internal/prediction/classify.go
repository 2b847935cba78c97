package prediction

import "fmt"

// Band thresholds. Values strictly above HighMin are High, values strictly
// below LowMax are Low, everything else (both bounds included) is Medium.
const (
	HighMin = 12.0
	LowMax  = 10.0
)

// Band is the ordered classification of a prediction value.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

// Bands lists every band from highest to lowest.
var Bands = []Band{BandHigh, BandMedium, BandLow}

// Classify maps a prediction value onto its band. It is total: NaN falls
// into Medium because it compares false against both thresholds.
func Classify(value float64) Band {
	switch {
	case value > HighMin:
		return BandHigh
	case value < LowMax:
		return BandLow
	default:
		return BandMedium
	}
}

// String returns the display name of the band.
func (b Band) String() string {
	switch b {
	case BandHigh:
		return "High"
	case BandMedium:
		return "Medium"
	case BandLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// Color returns the marker color of the band.
func (b Band) Color() string {
	switch b {
	case BandHigh:
		return "green"
	case BandMedium:
		return "yellow"
	default:
		return "red"
	}
}

// IconURL returns the map pin used for points of this band.
func (b Band) IconURL() string {
	return "https://maps.google.com/mapfiles/ms/icons/" + b.Color() + "-dot.png"
}

// Range describes the value interval covered by the band.
func (b Band) Range() string {
	switch b {
	case BandHigh:
		return fmt.Sprintf("> %.1f", HighMin)
	case BandLow:
		return fmt.Sprintf("< %.1f", LowMax)
	default:
		return fmt.Sprintf("%.1f - %.1f", LowMax, HighMin)
	}
}

// LegendEntry is one line of the map legend.
type LegendEntry struct {
	Band    Band
	Label   string
	Range   string
	Color   string
	IconURL string
}

// Legend returns the map legend, highest band first.
func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(Bands))
	for _, b := range Bands {
		entries = append(entries, LegendEntry{
			Band:    b,
			Label:   b.String(),
			Range:   b.Range(),
			Color:   b.Color(),
			IconURL: b.IconURL(),
		})
	}
	return entries
}
