package models

// Zone is a growing zone and the coordinate of its mill.
type Zone struct {
	Name   string `json:"name"`
	Center LatLng `json:"center"`
}

// ZoneCatalog lists the zones and the default map view.
type ZoneCatalog struct {
	Zones       []Zone `json:"zones"`
	DefaultView Camera `json:"defaultView"`
	FocusZoom   int    `json:"focusZoom"`
}

// Month maps a harvest month to its season year and model.
type Month struct {
	Month int    `json:"month"`
	Year  int    `json:"year"`
	Model string `json:"model"`
	Label string `json:"label"`
}

// LegendEntry is one line of the map legend.
type LegendEntry struct {
	Band    string `json:"band"`
	Range   string `json:"range"`
	Color   string `json:"color"`
	IconURL string `json:"iconUrl"`
}
