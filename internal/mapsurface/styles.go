package mapsurface

import "fmt"

// MapStyle is a selectable base map
type MapStyle struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	URL   string  `json:"url"`
	Pitch float64 `json:"pitch"`
}

// DefaultStyleID is the style loaded on startup
const DefaultStyleID = "high-contrast"

var styles = []MapStyle{
	{ID: "tactical-dark", Label: "Tactical Dark", URL: "mapbox://styles/mapbox/dark-v11"},
	{ID: "light", Label: "Light", URL: "mapbox://styles/mapbox/light-v11"},
	{ID: "satellite-streets", Label: "Satellite Streets", URL: "mapbox://styles/mapbox/satellite-streets-v12"},
	{ID: "satellite-clean", Label: "Satellite Clean", URL: "mapbox://styles/mapbox/satellite-v9"},
	{ID: "high-contrast", Label: "High Contrast", URL: "mapbox://styles/mapbox/navigation-night-v1"},
	{ID: "outdoors", Label: "Outdoors", URL: "mapbox://styles/mapbox/outdoors-v12", Pitch: 45},
}

// Styles lists the available base maps
func Styles() []MapStyle {
	out := make([]MapStyle, len(styles))
	copy(out, styles)
	return out
}

// LookupStyle finds a style by id
func LookupStyle(id string) (MapStyle, error) {
	for _, s := range styles {
		if s.ID == id {
			return s, nil
		}
	}
	return MapStyle{}, fmt.Errorf("unknown map style %q", id)
}
