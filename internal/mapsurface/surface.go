package mapsurface

import (
	"errors"
	"time"

	"github.com/paulmach/orb"

	"iter-viae/internal/models"
)

// MarkerRef identifies a live marker object owned by the surface
type MarkerRef string

// Marker describes how a waypoint is drawn
type Marker struct {
	Position  models.Coordinates `json:"position"`
	Label     string             `json:"label"`
	Icon      string             `json:"icon"`
	Draggable bool               `json:"draggable"`
}

// FitOptions controls a bounds fit animation
type FitOptions struct {
	Padding  float64
	MaxZoom  float64
	Duration time.Duration
}

// ErrLayerMissing is returned when drawing into a layer the current style no longer has
var ErrLayerMissing = errors.New("map layer missing")

// Surface is the imperative map rendering engine. Implementations own marker
// objects and layers; they never own waypoint data.
type Surface interface {
	CreateMarker(m Marker) (MarkerRef, error)
	UpdateMarker(ref MarkerRef, m Marker) error
	RemoveMarker(ref MarkerRef) error

	SetRouteLine(line orb.LineString) error
	ClearRouteLine() error
	// EnsureLayers re-creates the custom marker and route layers after a style swap
	EnsureLayers() error

	FitBounds(b orb.Bound, opts FitOptions) error
	FlyTo(center models.Coordinates, zoom float64, duration time.Duration) error

	SetEventHandler(h EventHandler)
}

// EventHandler receives user interaction events raised by the surface
type EventHandler interface {
	MarkerDragged(ref MarkerRef, to models.Coordinates)
	StyleReloaded()
	ContextMenu(at models.Coordinates)
	Moved(center models.Coordinates)
}
