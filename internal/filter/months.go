package filter

import (
	"slices"
	"strconv"
	"time"
)

// MonthEntry maps a harvest month to the season year and prediction model
// trained for it.
type MonthEntry struct {
	Month int
	Year  int
	Model string
	Label string
}

// seasonStart is the first calendar month of a crushing season. Months from
// October onward belong to the season that ends the following year.
const seasonStart = 10

const (
	seasonYear     = 2025
	seasonPrevYear = 2024
)

var months = buildMonths()

func buildMonths() []MonthEntry {
	entries := make([]MonthEntry, 0, 12)
	for m := 1; m <= 12; m++ {
		year := seasonYear
		if m >= seasonStart {
			year = seasonPrevYear
		}
		entries = append(entries, MonthEntry{
			Month: m,
			Year:  year,
			Model: "m" + strconv.Itoa(m),
			Label: time.Month(m).String(),
		})
	}
	return entries
}

// Months returns the static month table in calendar order.
func Months() []MonthEntry {
	return slices.Clone(months)
}

// LookupMonth returns the table entry for a month in 1..12.
func LookupMonth(month int) (MonthEntry, bool) {
	if month < 1 || month > len(months) {
		return MonthEntry{}, false
	}
	return months[month-1], true
}
