package models

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts the coordinate to an orb point (lng, lat order)
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// FromPoint converts an orb point back to Coordinates
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{Lat: p.Lat(), Lng: p.Lon()}
}

// Valid reports whether the coordinate lies within WGS84 bounds
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// String formats the coordinate the way the viewport readout copies it
func (c Coordinates) String() string {
	return fmt.Sprintf("%.8f, %.8f", c.Lat, c.Lng)
}

// RoundCoordinate rounds to 5 decimal places (~1m), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Category is the closed set of waypoint kinds
type Category string

const (
	CategoryStop    Category = "stop"
	CategoryFuel    Category = "gas"
	CategoryLodging Category = "hotel"
	CategoryFood    Category = "food"
	CategoryShaping Category = "shaping"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryStop, CategoryFuel, CategoryLodging, CategoryFood, CategoryShaping:
		return true
	}
	return false
}

// Icon returns the marker icon name for the category
func (c Category) Icon() string {
	switch c {
	case CategoryFuel:
		return "fuel"
	case CategoryLodging:
		return "lodging"
	case CategoryFood:
		return "restaurant"
	case CategoryShaping:
		return "shaping-dot"
	default:
		return "marker"
	}
}

// IsShaping reports whether waypoints of this category only bend the route line
// rather than splitting it into legs
func (c Category) IsShaping() bool {
	return c == CategoryShaping
}

// Waypoint is a planned stop. A nil Coord means the location is not resolved yet.
type Waypoint struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	Coord                  *Coordinates `json:"coord"`
	Category               Category     `json:"type"`
	PlannedDurationMinutes int          `json:"duration"`
	IsEditing              bool         `json:"is_editing"`
}

// IsResolved reports whether the waypoint has a known location
func (w *Waypoint) IsResolved() bool {
	return w.Coord != nil
}

// Routable reports whether the waypoint takes part in routing, markers and camera fits
func (w *Waypoint) Routable() bool {
	return w.Coord != nil && !w.IsEditing
}

// Clone returns a deep copy so callers never share the coordinate pointer
func (w Waypoint) Clone() Waypoint {
	if w.Coord != nil {
		c := *w.Coord
		w.Coord = &c
	}
	return w
}

// Leg holds the metrics for the route segment between two consecutive stops
type Leg struct {
	DurationSecs   float64 `json:"duration_secs"`
	DistanceMeters float64 `json:"distance_meters"`
}

// RouteGeometry is a computed route line plus per-leg metrics.
// Key identifies the coordinate sequence the route was computed for.
type RouteGeometry struct {
	Key  string         `json:"key"`
	Line orb.LineString `json:"line"`
	Legs []Leg          `json:"legs"`
}

// TotalDuration sums the leg durations in seconds
func (g *RouteGeometry) TotalDuration() float64 {
	var total float64
	for _, l := range g.Legs {
		total += l.DurationSecs
	}
	return total
}

// TotalDistance sums the leg distances in meters
func (g *RouteGeometry) TotalDistance() float64 {
	var total float64
	for _, l := range g.Legs {
		total += l.DistanceMeters
	}
	return total
}

// Suggestion is one ranked geocoding/autocomplete result
type Suggestion struct {
	Label   string      `json:"label"`
	Coords  Coordinates `json:"coords"`
	PlaceID string      `json:"place_id,omitempty"`
}

// WaypointView is the waypoint list row handed to the UI
type WaypointView struct {
	ID                     string       `json:"id"`
	Position               int          `json:"position"`
	Name                   string       `json:"name"`
	Coord                  *Coordinates `json:"coord"`
	Category               Category     `json:"type"`
	PlannedDurationMinutes int          `json:"duration"`
	IsEditing              bool         `json:"is_editing"`
	LegToNext              *Leg         `json:"leg_to_next"`
}

// DistanceCacheEntry represents a cached distance lookup
type DistanceCacheEntry struct {
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
}
