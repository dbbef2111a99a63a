package mapsurface

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"iter-viae/internal/models"
)

// OpCounts tallies the operations a surface has executed
type OpCounts struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Removed      int `json:"removed"`
	LineSets     int `json:"line_sets"`
	LineClears   int `json:"line_clears"`
	Fits         int `json:"fits"`
	Flights      int `json:"flights"`
	LayerRebuild int `json:"layer_rebuilds"`
}

// MarkerOps is the number of marker create/update/remove calls
func (c OpCounts) MarkerOps() int {
	return c.Created + c.Updated + c.Removed
}

// CameraState is the last camera command the surface received
type CameraState struct {
	Bound    *orb.Bound         `json:"bound,omitempty"`
	Center   models.Coordinates `json:"center"`
	Zoom     float64            `json:"zoom"`
	MaxZoom  float64            `json:"max_zoom,omitempty"`
	Padding  float64            `json:"padding,omitempty"`
	Pitch    float64            `json:"pitch"`
	Duration time.Duration      `json:"duration"`
}

// MemorySurface is an in-process Surface. It keeps the marker set, route line and
// camera the way a browser map would, and lets callers inject user events.
// Like real engines, a style swap discards every custom layer.
type MemorySurface struct {
	mu          sync.Mutex
	nextRef     int
	markers     map[MarkerRef]Marker
	line        orb.LineString
	layersReady bool
	style       MapStyle
	camera      CameraState
	counts      OpCounts
	handler     EventHandler
}

// NewMemorySurface creates a surface showing the given style
func NewMemorySurface(style MapStyle) *MemorySurface {
	return &MemorySurface{
		markers:     make(map[MarkerRef]Marker),
		layersReady: true,
		style:       style,
		camera:      CameraState{Pitch: style.Pitch},
	}
}

func (s *MemorySurface) SetEventHandler(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *MemorySurface) CreateMarker(m Marker) (MarkerRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.layersReady {
		return "", ErrLayerMissing
	}
	s.nextRef++
	ref := MarkerRef(fmt.Sprintf("marker-%d", s.nextRef))
	s.markers[ref] = m
	s.counts.Created++
	return ref, nil
}

func (s *MemorySurface) UpdateMarker(ref MarkerRef, m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[ref]; !ok {
		return fmt.Errorf("marker %s not found", ref)
	}
	s.markers[ref] = m
	s.counts.Updated++
	return nil
}

func (s *MemorySurface) RemoveMarker(ref MarkerRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[ref]; !ok {
		return fmt.Errorf("marker %s not found", ref)
	}
	delete(s.markers, ref)
	s.counts.Removed++
	return nil
}

func (s *MemorySurface) SetRouteLine(line orb.LineString) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.layersReady {
		return ErrLayerMissing
	}
	s.line = append(orb.LineString(nil), line...)
	s.counts.LineSets++
	return nil
}

func (s *MemorySurface) ClearRouteLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.line = nil
	s.counts.LineClears++
	return nil
}

func (s *MemorySurface) EnsureLayers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.layersReady {
		s.layersReady = true
		s.counts.LayerRebuild++
	}
	return nil
}

func (s *MemorySurface) FitBounds(b orb.Bound, opts FitOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bound := b
	s.camera.Bound = &bound
	s.camera.Center = FromOrbCenter(b)
	s.camera.MaxZoom = opts.MaxZoom
	s.camera.Padding = opts.Padding
	s.camera.Duration = opts.Duration
	s.counts.Fits++
	return nil
}

func (s *MemorySurface) FlyTo(center models.Coordinates, zoom float64, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Bound = nil
	s.camera.Center = center
	s.camera.Zoom = zoom
	s.camera.Duration = duration
	s.counts.Flights++
	return nil
}

// FromOrbCenter returns the center of a bound as Coordinates
func FromOrbCenter(b orb.Bound) models.Coordinates {
	return models.FromPoint(b.Center())
}

// SetStyle swaps the base map. Custom layers are torn down and the handler is
// told to rebuild them.
func (s *MemorySurface) SetStyle(id string) error {
	style, err := LookupStyle(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.style = style
	s.markers = make(map[MarkerRef]Marker)
	s.line = nil
	s.layersReady = false
	s.camera.Pitch = style.Pitch
	h := s.handler
	s.mu.Unlock()

	if h != nil {
		h.StyleReloaded()
	}
	return nil
}

// DragMarker simulates the user finishing a marker drag
func (s *MemorySurface) DragMarker(ref MarkerRef, to models.Coordinates) error {
	s.mu.Lock()
	m, ok := s.markers[ref]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("marker %s not found", ref)
	}
	if !m.Draggable {
		s.mu.Unlock()
		return fmt.Errorf("marker %s is not draggable", ref)
	}
	m.Position = to
	s.markers[ref] = m
	h := s.handler
	s.mu.Unlock()

	if h != nil {
		h.MarkerDragged(ref, to)
	}
	return nil
}

// RightClick simulates a context-menu request at a map position
func (s *MemorySurface) RightClick(at models.Coordinates) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.ContextMenu(at)
	}
}

// Move simulates the user panning the map
func (s *MemorySurface) Move(center models.Coordinates) {
	s.mu.Lock()
	s.camera.Center = center
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.Moved(center)
	}
}

// Counts returns the operation tally so far
func (s *MemorySurface) Counts() OpCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Markers returns a copy of the live marker set
func (s *MemorySurface) Markers() map[MarkerRef]Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[MarkerRef]Marker, len(s.markers))
	for k, v := range s.markers {
		out[k] = v
	}
	return out
}

// RouteLine returns the currently drawn route line
func (s *MemorySurface) RouteLine() orb.LineString {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(orb.LineString(nil), s.line...)
}

// Camera returns the last camera state
func (s *MemorySurface) Camera() CameraState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// Style returns the active base map
func (s *MemorySurface) Style() MapStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// FeatureCollection exports markers and the route line as GeoJSON for a browser map
func (s *MemorySurface) FeatureCollection() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc := geojson.NewFeatureCollection()

	refs := make([]string, 0, len(s.markers))
	for ref := range s.markers {
		refs = append(refs, string(ref))
	}
	sort.Strings(refs)

	for _, ref := range refs {
		m := s.markers[MarkerRef(ref)]
		f := geojson.NewFeature(m.Position.Point())
		f.ID = ref
		f.Properties["kind"] = "marker"
		f.Properties["label"] = m.Label
		f.Properties["icon"] = m.Icon
		f.Properties["draggable"] = m.Draggable
		fc.Append(f)
	}

	if len(s.line) >= 2 {
		f := geojson.NewFeature(append(orb.LineString(nil), s.line...))
		f.ID = "route"
		f.Properties["kind"] = "route"
		fc.Append(f)
	}

	return fc
}
