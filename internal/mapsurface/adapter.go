package mapsurface

import (
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
	"iter-viae/internal/waypoints"
)

// Ops counts the marker operations one reconciliation pass issued
type Ops struct {
	Created int
	Updated int
	Deleted int
}

// Total is the number of surface calls the pass made
func (o Ops) Total() int {
	return o.Created + o.Updated + o.Deleted
}

type markerHandle struct {
	ref    MarkerRef
	marker Marker
}

// Adapter keeps the surface's marker set in line with the waypoint store.
// It owns the id -> handle table; the store stays the only source of waypoint data.
type Adapter struct {
	surface Surface
	store   *waypoints.Store
	log     *logrus.Entry

	mu          sync.Mutex
	handles     map[string]*markerHandle
	byRef       map[MarkerRef]string
	lastVersion uint64
	reconciled  bool
	route       *models.RouteGeometry
	replay      func() *models.RouteGeometry
	center      models.Coordinates

	onContextMenu func(models.Coordinates)
	onMove        func(models.Coordinates)
}

// NewAdapter binds a surface to a store and registers for surface events
func NewAdapter(surface Surface, store *waypoints.Store, logger *logrus.Logger) *Adapter {
	a := &Adapter{
		surface: surface,
		store:   store,
		log:     logger.WithField("component", "map"),
		handles: make(map[string]*markerHandle),
		byRef:   make(map[MarkerRef]string),
	}
	surface.SetEventHandler(a)
	return a
}

// SetReplaySource sets where the last good route comes from after a style reload
func (a *Adapter) SetReplaySource(fn func() *models.RouteGeometry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replay = fn
}

// OnContextMenu registers the callback for map right-click insertion
func (a *Adapter) OnContextMenu(fn func(models.Coordinates)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onContextMenu = fn
}

// OnMove registers a callback for viewport movement
func (a *Adapter) OnMove(fn func(models.Coordinates)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMove = fn
}

func markerFor(w models.Waypoint, position int) Marker {
	return Marker{
		Position:  *w.Coord,
		Label:     strconv.Itoa(position),
		Icon:      w.Category.Icon(),
		Draggable: true,
	}
}

// Reconcile brings the marker set in line with snap. Only waypoints that are
// resolved and not editing get a marker; existing markers are updated in place.
// Snapshots older than the last reconciled one are ignored.
func (a *Adapter) Reconcile(snap waypoints.Snapshot) Ops {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reconciled && snap.Version < a.lastVersion {
		a.log.WithField("version", snap.Version).Debug("[MAP] Skipping stale snapshot")
		return Ops{}
	}
	a.lastVersion = snap.Version
	a.reconciled = true

	return a.reconcileLocked(snap.Waypoints)
}

func (a *Adapter) reconcileLocked(list []models.Waypoint) Ops {
	var ops Ops

	wanted := make(map[string]Marker, len(list))
	for i, w := range list {
		if w.Routable() {
			wanted[w.ID] = markerFor(w, i+1)
		}
	}

	for id, h := range a.handles {
		if _, keep := wanted[id]; keep {
			continue
		}
		if err := a.surface.RemoveMarker(h.ref); err != nil {
			a.log.WithError(err).WithField("waypoint_id", id).Warn("[MAP] Failed to remove marker")
		}
		delete(a.handles, id)
		delete(a.byRef, h.ref)
		ops.Deleted++
	}

	for _, w := range list {
		m, ok := wanted[w.ID]
		if !ok {
			continue
		}
		if h, exists := a.handles[w.ID]; exists {
			if h.marker == m {
				continue
			}
			if err := a.surface.UpdateMarker(h.ref, m); err != nil {
				a.log.WithError(err).WithField("waypoint_id", w.ID).Warn("[MAP] Failed to update marker")
				continue
			}
			h.marker = m
			ops.Updated++
			continue
		}

		ref, err := a.surface.CreateMarker(m)
		if err != nil {
			a.log.WithError(err).WithField("waypoint_id", w.ID).Warn("[MAP] Failed to create marker")
			continue
		}
		a.handles[w.ID] = &markerHandle{ref: ref, marker: m}
		a.byRef[ref] = w.ID
		ops.Created++
	}

	if ops.Total() > 0 {
		a.log.WithFields(logrus.Fields{
			"created": ops.Created,
			"updated": ops.Updated,
			"deleted": ops.Deleted,
		}).Debug("[MAP] Reconciled markers")
	}
	return ops
}

// HandleFor returns the marker ref currently bound to a waypoint
func (a *Adapter) HandleFor(id string) (MarkerRef, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[id]
	if !ok {
		return "", false
	}
	return h.ref, true
}

// RenderRoute draws g, or clears the route line when g is nil
func (a *Adapter) RenderRoute(g *models.RouteGeometry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.route = g
	a.drawRouteLocked()
}

func (a *Adapter) drawRouteLocked() {
	if a.route == nil || len(a.route.Line) < 2 {
		if err := a.surface.ClearRouteLine(); err != nil {
			a.log.WithError(err).Warn("[MAP] Failed to clear route line")
		}
		return
	}
	if err := a.surface.SetRouteLine(a.route.Line); err != nil {
		a.log.WithError(err).Warn("[MAP] Failed to draw route line")
	}
}

// ViewportCenter returns the last reported map center
func (a *Adapter) ViewportCenter() models.Coordinates {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.center
}

// MarkerDragged writes the dropped position back into the store. The handle is
// updated first so the reconciliation that follows issues no surface call. A drop
// on an invalid coordinate puts the marker back where the store has it.
func (a *Adapter) MarkerDragged(ref MarkerRef, to models.Coordinates) {
	a.mu.Lock()
	id, ok := a.byRef[ref]
	if !ok {
		a.mu.Unlock()
		a.log.WithField("ref", ref).Warn("[MAP] Drag on unknown marker")
		return
	}
	h := a.handles[id]
	if !to.Valid() {
		if err := a.surface.UpdateMarker(h.ref, h.marker); err != nil {
			a.log.WithError(err).WithField("waypoint_id", id).Warn("[MAP] Failed to restore dragged marker")
		}
		a.mu.Unlock()
		a.log.WithField("waypoint_id", id).Warn("[MAP] Ignoring drag to invalid coordinate")
		return
	}
	h.marker.Position = to
	a.mu.Unlock()

	a.store.SetCoordinate(id, to)
	a.log.WithFields(logrus.Fields{"waypoint_id": id, "lat": to.Lat, "lng": to.Lng}).Info("[MAP] Marker dragged")
}

// StyleReloaded rebuilds the custom layers after a style swap, recreates the
// markers the swap discarded, and replays the cached route without a new request.
func (a *Adapter) StyleReloaded() {
	a.mu.Lock()
	replay := a.replay
	a.mu.Unlock()

	// Both sources take their own locks; neither is called with a.mu held.
	snap := a.store.Snapshot()
	var route *models.RouteGeometry
	if replay != nil {
		route = replay()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.surface.EnsureLayers(); err != nil {
		a.log.WithError(err).Error("[MAP] Failed to rebuild layers after style reload")
		return
	}

	a.handles = make(map[string]*markerHandle)
	a.byRef = make(map[MarkerRef]string)
	ops := a.reconcileLocked(snap.Waypoints)
	a.lastVersion = snap.Version
	a.reconciled = true

	if replay != nil {
		a.route = route
	}
	a.drawRouteLocked()

	a.log.WithField("markers", ops.Created).Info("[MAP] Style reloaded, layers restored")
}

// ContextMenu forwards a right-click position to the insertion callback
func (a *Adapter) ContextMenu(at models.Coordinates) {
	a.mu.Lock()
	fn := a.onContextMenu
	a.mu.Unlock()
	if fn != nil {
		fn(at)
	}
}

// Moved records the viewport center
func (a *Adapter) Moved(center models.Coordinates) {
	a.mu.Lock()
	a.center = center
	fn := a.onMove
	a.mu.Unlock()
	if fn != nil {
		fn(center)
	}
}
