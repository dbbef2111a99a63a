package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/camera"
	"iter-viae/internal/directions"
	"iter-viae/internal/geolocation"
	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
	"iter-viae/internal/optimize"
	"iter-viae/internal/reorder"
	"iter-viae/internal/search"
	"iter-viae/internal/waypoints"
)

// ErrNoSearch is returned for search calls on a waypoint that is not being edited
var ErrNoSearch = errors.New("no search in progress for waypoint")

// ErrNotFound is returned for an unknown waypoint id
var ErrNotFound = errors.New("waypoint not found")

// Surface is the map surface plus the style switch the planner drives
type Surface interface {
	mapsurface.Surface
	SetStyle(id string) error
}

// Deps are the collaborators a planner is assembled from. Optimizer and
// Locator are optional.
type Deps struct {
	Store     *waypoints.Store
	Surface   Surface
	Route     *directions.Service
	Camera    camera.Options
	Suggester search.Suggester
	Search    search.Config
	Optimizer *optimize.Optimizer
	Locator   geolocation.Locator
	Center    models.Coordinates
}

// RouteSummary is the route state shown next to the waypoint list
type RouteSummary struct {
	Key                 string       `json:"key,omitempty"`
	TotalDurationSecs   float64      `json:"total_duration_secs"`
	TotalDistanceMeters float64      `json:"total_distance_meters"`
	Legs                []models.Leg `json:"legs"`
	Points              int          `json:"points"`
	LastError           string       `json:"last_error,omitempty"`
}

// Planner connects the waypoint store to the map adapter, the camera and the
// route service, and hands the list UI its view models and mutation calls.
type Planner struct {
	store     *waypoints.Store
	surface   Surface
	adapter   *mapsurface.Adapter
	camera    *camera.Controller
	route     *directions.Service
	reorder   *reorder.Controller
	suggester search.Suggester
	searchCfg search.Config
	optimizer *optimize.Optimizer
	locator   geolocation.Locator
	center    models.Coordinates
	logger    *logrus.Logger
	log       *logrus.Entry

	mu        sync.Mutex
	sessions  map[string]*search.Session
	lastError error

	stop chan struct{}
	done chan struct{}
}

func New(deps Deps, logger *logrus.Logger) *Planner {
	if deps.Locator == nil {
		deps.Locator = geolocation.NoLocator{}
	}
	p := &Planner{
		store:     deps.Store,
		surface:   deps.Surface,
		adapter:   mapsurface.NewAdapter(deps.Surface, deps.Store, logger),
		camera:    camera.NewController(deps.Surface, deps.Camera, logger),
		route:     deps.Route,
		reorder:   reorder.NewController(deps.Store, logger),
		suggester: deps.Suggester,
		searchCfg: deps.Search,
		optimizer: deps.Optimizer,
		locator:   deps.Locator,
		center:    deps.Center,
		logger:    logger,
		log:       logger.WithField("component", "planner"),
		sessions:  make(map[string]*search.Session),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	p.adapter.SetReplaySource(p.route.Replay)
	p.adapter.OnContextMenu(p.insertAt)
	p.route.Subscribe(func(r directions.Result) {
		p.adapter.RenderRoute(r.Geometry)
	})
	p.store.Subscribe(p.sync)

	go p.drainDiagnostics()
	return p
}

// sync runs for every published snapshot, in version order
func (p *Planner) sync(snap waypoints.Snapshot) {
	p.adapter.Reconcile(snap)
	p.camera.Update(coords(snap.Routable()))
	p.route.Trigger(snap.Waypoints)
}

func coords(list []models.Waypoint) []models.Coordinates {
	return lo.Map(list, func(w models.Waypoint, _ int) models.Coordinates { return *w.Coord })
}

func (p *Planner) drainDiagnostics() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case err := <-p.route.Diagnostics():
			p.mu.Lock()
			p.lastError = err
			p.mu.Unlock()
		}
	}
}

// Start draws whatever the store already holds and recenters the camera on the
// located position, falling back to the configured center.
func (p *Planner) Start(ctx context.Context) {
	snap := p.store.Snapshot()
	p.adapter.Reconcile(snap)
	routable := coords(snap.Routable())
	if len(routable) > 0 {
		p.camera.Fit(routable)
		p.route.Trigger(snap.Waypoints)
		return
	}

	at, err := p.locator.Locate(ctx)
	if err != nil {
		p.log.WithError(err).Info("[GEOLOCATION] No fix, using default center")
		at = p.center
	}
	p.camera.Recenter(at)
}

// Close stops background work and any pending searches
func (p *Planner) Close() {
	p.mu.Lock()
	for id, s := range p.sessions {
		s.Close()
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}

// Views returns the waypoint list view models with the leg that starts at each stop
func (p *Planner) Views() []models.WaypointView {
	snap := p.store.Snapshot()
	legs := p.route.Current().LegsByWaypoint(snap.Waypoints)

	views := make([]models.WaypointView, len(snap.Waypoints))
	for i, w := range snap.Waypoints {
		v := models.WaypointView{
			ID:                     w.ID,
			Position:               i + 1,
			Name:                   w.Name,
			Coord:                  w.Coord,
			Category:               w.Category,
			PlannedDurationMinutes: w.PlannedDurationMinutes,
			IsEditing:              w.IsEditing,
		}
		if leg, ok := legs[w.ID]; ok {
			v.LegToNext = &leg
		}
		views[i] = v
	}
	return views
}

// Route returns the current route totals
func (p *Planner) Route() RouteSummary {
	cur := p.route.Current()
	var out RouteSummary
	p.mu.Lock()
	if p.lastError != nil {
		out.LastError = p.lastError.Error()
	}
	p.mu.Unlock()
	if cur.Geometry == nil {
		return out
	}
	out.Key = cur.Key
	out.TotalDurationSecs = cur.Geometry.TotalDuration()
	out.TotalDistanceMeters = cur.Geometry.TotalDistance()
	out.Legs = cur.StopLegs(p.store.Snapshot().Waypoints)
	out.Points = len(cur.Geometry.Line)
	return out
}

// Add appends a resolved waypoint
func (p *Planner) Add(name string, at models.Coordinates, category models.Category) (models.Waypoint, error) {
	if name == "" {
		name = at.String()
	}
	return p.reorder.Append(name, at, category)
}

func (p *Planner) insertAt(at models.Coordinates) {
	if _, err := p.Add("", at, models.CategoryStop); err != nil {
		p.log.WithError(err).Warn("[MAP] Context menu insert rejected")
	}
}

// Delete removes a waypoint, abandoning its search if one is running
func (p *Planner) Delete(id string) error {
	p.dropSession(id, true)
	if _, ok := p.store.Snapshot().Find(id); !ok {
		return ErrNotFound
	}
	p.reorder.Delete(id)
	return nil
}

// UpdateDetails edits name, category or stay time. None of them changes what is
// routed; a switch to or from shaping only regroups the legs.
func (p *Planner) UpdateDetails(id string, d reorder.Details) (models.Waypoint, error) {
	snap, err := p.reorder.SetDetails(id, d)
	if err != nil {
		return models.Waypoint{}, err
	}
	w, _ := snap.Find(id)
	return w, nil
}

// Reorder moves id from one index to another
func (p *Planner) Reorder(id string, from, to int) error {
	_, err := p.reorder.Reorder(id, from, to)
	return err
}

// CanDrag reports whether the list allows drag reordering
func (p *Planner) CanDrag() bool {
	return p.reorder.CanDrag()
}

// InsertShapingPointAfter opens a search for a new shaping point after index
func (p *Planner) InsertShapingPointAfter(index int) (models.Waypoint, error) {
	return p.BeginStop(index, models.CategoryShaping)
}

// BeginStop inserts an editing waypoint after index and opens its search
func (p *Planner) BeginStop(index int, category models.Category) (models.Waypoint, error) {
	wp, err := p.reorder.BeginStop(index, category)
	if err != nil {
		return models.Waypoint{}, err
	}
	s := search.NewSession(p.suggester, p.searchCfg, p.logger, nil)
	p.mu.Lock()
	p.sessions[wp.ID] = s
	p.mu.Unlock()
	return wp, nil
}

func (p *Planner) session(id string) (*search.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSearch, id)
	}
	return s, nil
}

func (p *Planner) dropSession(id string, cancel bool) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	if cancel {
		s.Cancel()
	}
	s.Close()
}

// Type feeds search text for an editing waypoint
func (p *Planner) Type(id, text string) (search.View, error) {
	s, err := p.session(id)
	if err != nil {
		return search.View{}, err
	}
	return s.Type(text), nil
}

// Suggestions returns the search state for an editing waypoint
func (p *Planner) Suggestions(id string) (search.View, error) {
	s, err := p.session(id)
	if err != nil {
		return search.View{}, err
	}
	return s.View(), nil
}

// Accept resolves the waypoint to its literal coordinate or top suggestion.
// With nothing to accept it reports false and leaves the waypoint editing.
func (p *Planner) Accept(id string) (models.Waypoint, bool, error) {
	s, err := p.session(id)
	if err != nil {
		return models.Waypoint{}, false, err
	}
	r, ok := s.Top()
	if !ok {
		return models.Waypoint{}, false, nil
	}
	return p.resolve(id, s, r)
}

// Select resolves the waypoint to the i-th suggestion
func (p *Planner) Select(id string, i int) (models.Waypoint, bool, error) {
	s, err := p.session(id)
	if err != nil {
		return models.Waypoint{}, false, err
	}
	r, ok := s.At(i)
	if !ok {
		return models.Waypoint{}, false, nil
	}
	return p.resolve(id, s, r)
}

// resolve writes r into the store. A rejected write leaves the search open so
// the user can pick again or cancel.
func (p *Planner) resolve(id string, s *search.Session, r search.Resolution) (models.Waypoint, bool, error) {
	snap, err := p.reorder.Resolve(id, r.Name, r.Coord)
	if err != nil {
		return models.Waypoint{}, false, err
	}
	s.Resolve(r)
	p.dropSession(id, false)
	p.camera.FlyToResult(r.Coord)
	w, _ := snap.Find(id)
	return w, true, nil
}

// CancelEdit abandons a search and removes the unresolved waypoint
func (p *Planner) CancelEdit(id string) error {
	p.dropSession(id, true)
	_, err := p.reorder.Cancel(id)
	return err
}

// Focus flies the camera to a waypoint picked from the list
func (p *Planner) Focus(id string) error {
	w, ok := p.store.Snapshot().Find(id)
	if !ok {
		return ErrNotFound
	}
	if !w.IsResolved() {
		return fmt.Errorf("focus %s: %w", id, waypoints.ErrRejected)
	}
	return p.camera.Focus(*w.Coord)
}

// MarkerFor returns the surface marker drawn for a waypoint
func (p *Planner) MarkerFor(id string) (mapsurface.MarkerRef, bool) {
	return p.adapter.HandleFor(id)
}

// ViewportCenter is the last center the map reported
func (p *Planner) ViewportCenter() models.Coordinates {
	return p.adapter.ViewportCenter()
}

// SetStyle swaps the base map; markers and the cached route are restored
// without a new route request
func (p *Planner) SetStyle(id string) error {
	return p.surface.SetStyle(id)
}

// OptimizeOrder reorders stops for the shortest trip. The first stop stays
// first (and the last stays last with keepEnd); shaping points travel with
// the stop they follow.
func (p *Planner) OptimizeOrder(ctx context.Context, keepEnd bool) ([]string, error) {
	if p.optimizer == nil {
		return nil, errors.New("route optimization is not configured")
	}
	snap := p.store.Snapshot()
	if waypoints.AnyEditing(snap.Waypoints) {
		return nil, fmt.Errorf("optimize: a waypoint is being edited: %w", waypoints.ErrRejected)
	}
	if len(snap.Routable()) != len(snap.Waypoints) {
		return nil, fmt.Errorf("optimize: unresolved waypoints: %w", waypoints.ErrRejected)
	}

	groups := stopGroups(snap.Waypoints)
	heads := lo.Map(groups, func(g []models.Waypoint, _ int) models.Coordinates { return *g[0].Coord })
	order, err := p.optimizer.Order(ctx, heads, keepEnd)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snap.Waypoints))
	for _, gi := range order {
		for _, w := range groups[gi] {
			ids = append(ids, w.ID)
		}
	}
	if _, err := p.reorder.ApplyOrder(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// stopGroups splits the list into runs that start with a stop and carry the
// shaping points that follow it
func stopGroups(list []models.Waypoint) [][]models.Waypoint {
	var groups [][]models.Waypoint
	for i, w := range list {
		if i == 0 || !w.Category.IsShaping() {
			groups = append(groups, []models.Waypoint{w})
			continue
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], w)
	}
	return groups
}
