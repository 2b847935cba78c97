package models

// Camera is a map view.
type Camera struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
	Layer  string `json:"layer"`
}

// Icon is a marker image.
type Icon struct {
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// PopupRow is a label/value line.
type PopupRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PopupSection groups popup rows.
type PopupSection struct {
	Heading string     `json:"heading,omitempty"`
	Rows    []PopupRow `json:"rows"`
}

// Popup is a marker info window.
type Popup struct {
	Title    string         `json:"title"`
	Sections []PopupSection `json:"sections"`
}

// Marker is one placed marker.
type Marker struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Position  LatLng `json:"position"`
	Icon      Icon   `json:"icon"`
	Label     string `json:"label,omitempty"`
	Title     string `json:"title,omitempty"`
	Popup     *Popup `json:"popup,omitempty"`
	PopupOpen bool   `json:"popupOpen"`
}

// MapView is the canvas mirrored by the browser.
type MapView struct {
	Available   bool     `json:"available"`
	ProviderKey string   `json:"providerKey,omitempty"`
	Camera      Camera   `json:"camera"`
	Version     uint64   `json:"version"`
	Markers     []Marker `json:"markers"`
}
