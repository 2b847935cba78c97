package models

// Filter is the query an analyst edits before applying it.
type Filter struct {
	Year          int      `json:"year"`
	StartMonth    int      `json:"startMonth"`
	EndMonth      int      `json:"endMonth"`
	SelectedMonth int      `json:"selectedMonth"`
	Models        []string `json:"models"`
	Zones         []string `json:"zones"`
	Limit         int      `json:"limit"`
	GroupByLevel  bool     `json:"groupByLevel"`
	FocusedZone   string   `json:"focusedZone,omitempty"`
}

// Progress is the stage of the latest apply.
type Progress struct {
	Seq     uint64 `json:"seq"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// BandSummary counts rendered points per band.
type BandSummary struct {
	Total         int     `json:"total"`
	HighCount     int     `json:"highCount"`
	MediumCount   int     `json:"mediumCount"`
	LowCount      int     `json:"lowCount"`
	HighPercent   float64 `json:"highPercent"`
	MediumPercent float64 `json:"mediumPercent"`
	LowPercent    float64 `json:"lowPercent"`
	Average       float64 `json:"average"`
}

// ZoneStatistic is a backend aggregate for one zone and model.
type ZoneStatistic struct {
	Zone          string  `json:"zone"`
	Model         string  `json:"model"`
	Total         int     `json:"total"`
	HighCount     int     `json:"highCount"`
	MediumCount   int     `json:"mediumCount"`
	LowCount      int     `json:"lowCount"`
	HighPercent   float64 `json:"highPercent"`
	MediumPercent float64 `json:"mediumPercent"`
	LowPercent    float64 `json:"lowPercent"`
	Average       float64 `json:"average"`
}

// Result describes the overlay currently drawn.
type Result struct {
	Seq            uint64             `json:"seq"`
	Models         []string           `json:"models"`
	Averages       map[string]float64 `json:"averages"`
	ZoneStatistics []ZoneStatistic    `json:"zoneStatistics"`
	Points         int                `json:"points"`
	Markers        int                `json:"markers"`
	SkippedZones   []string           `json:"skippedZones,omitempty"`
	Cached         bool               `json:"cached"`
	CacheKey       string             `json:"cacheKey,omitempty"`
	RenderedAt     Timestamp          `json:"renderedAt"`
}

// Session is the dashboard state of one browser session.
type Session struct {
	ID                  string        `json:"id"`
	Filter              Filter        `json:"filter"`
	Applied             *Filter       `json:"applied,omitempty"`
	HasUnappliedChanges bool          `json:"hasUnappliedChanges"`
	Progress            Progress      `json:"progress"`
	Banner              string        `json:"banner,omitempty"`
	Summary             *BandSummary  `json:"summary,omitempty"`
	Result              *Result       `json:"result,omitempty"`
	Legend              []LegendEntry `json:"legend"`
	MapAvailable        bool          `json:"mapAvailable"`
	CreatedAt           Timestamp     `json:"createdAt"`
	UpdatedAt           Timestamp     `json:"updatedAt"`
}

// ApplyResult is returned by an apply.
type ApplyResult struct {
	Seq     uint64  `json:"seq"`
	Stale   bool    `json:"stale"`
	Error   string  `json:"error,omitempty"`
	Session Session `json:"session"`
}

// FilterPatch changes filter fields by their query name, for example
// {"limit": 2000, "zones": "SB,MAC"}.
type FilterPatch map[string]any

// MonthRequest selects a harvest month.
type MonthRequest struct {
	Month int `json:"month"`
}

// FocusRequest narrows the dashboard to one zone.
type FocusRequest struct {
	Zone string `json:"zone"`
}

// CacheClearResponse acknowledges a cache clear.
type CacheClearResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	JobID  string `json:"jobId,omitempty"`
}
