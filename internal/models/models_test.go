package models

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCoordinatesPointRoundTrip(t *testing.T) {
	coords := Coordinates{Lat: 40.7128, Lng: -74.0060}

	p := coords.Point()

	assert.Equal(t, orb.Point{-74.0060, 40.7128}, p)
	assert.Equal(t, coords, FromPoint(p))
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 0, Lng: 0}.Valid())
	assert.True(t, Coordinates{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -181}.Valid())
}

func TestCoordinatesString(t *testing.T) {
	coords := Coordinates{Lat: 35.6762, Lng: 139.6503}

	assert.Equal(t, "35.67620000, 139.65030000", coords.String())
}

func TestWaypointRoutable(t *testing.T) {
	origin := Coordinates{Lat: 0, Lng: 0}

	resolved := Waypoint{ID: "a", Coord: &origin}
	editing := Waypoint{ID: "b", Coord: &origin, IsEditing: true}
	unresolved := Waypoint{ID: "c"}

	// (0,0) is a real place, not a sentinel
	assert.True(t, resolved.IsResolved())
	assert.True(t, resolved.Routable())
	assert.True(t, editing.IsResolved())
	assert.False(t, editing.Routable())
	assert.False(t, unresolved.IsResolved())
	assert.False(t, unresolved.Routable())
}

func TestWaypointCloneDoesNotShareCoordinate(t *testing.T) {
	orig := Waypoint{ID: "a", Coord: &Coordinates{Lat: 1, Lng: 2}}

	cp := orig.Clone()
	cp.Coord.Lat = 99

	assert.Equal(t, 1.0, orig.Coord.Lat)
}

func TestCategoryValidAndIcon(t *testing.T) {
	assert.True(t, CategoryFuel.Valid())
	assert.False(t, Category("boat").Valid())
	assert.Equal(t, "fuel", CategoryFuel.Icon())
	assert.Equal(t, "marker", CategoryStop.Icon())
	assert.True(t, CategoryShaping.IsShaping())
}

func TestRouteGeometryTotals(t *testing.T) {
	g := &RouteGeometry{Legs: []Leg{{DurationSecs: 60, DistanceMeters: 1000}, {DurationSecs: 30, DistanceMeters: 500}}}

	assert.Equal(t, 90.0, g.TotalDuration())
	assert.Equal(t, 1500.0, g.TotalDistance())
}
