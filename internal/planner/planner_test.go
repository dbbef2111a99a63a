package planner

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/camera"
	"iter-viae/internal/directions"
	"iter-viae/internal/distance"
	"iter-viae/internal/geolocation"
	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
	"iter-viae/internal/optimize"
	"iter-viae/internal/reorder"
	"iter-viae/internal/search"
	"iter-viae/internal/waypoints"
)

type lineRouter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *lineRouter) Route(ctx context.Context, points []directions.Point) (*models.RouteGeometry, error) {
	r.mu.Lock()
	r.calls++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	g := &models.RouteGeometry{}
	for _, p := range points {
		g.Line = append(g.Line, p.Coord.Point())
	}
	for i := 0; i < len(points)-1; i++ {
		g.Legs = append(g.Legs, models.Leg{DurationSecs: 60, DistanceMeters: 1000})
	}
	return g, nil
}

func (r *lineRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type placeSuggester struct{}

func (placeSuggester) Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	return []models.Suggestion{
		{Label: text + " North", Coords: models.Coordinates{Lat: 40.76, Lng: -73.98}},
		{Label: text + " South", Coords: models.Coordinates{Lat: 40.75, Lng: -73.99}},
	}, nil
}

// outOfRange suggests places a geocoder got wrong
type outOfRange struct{}

func (outOfRange) Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	return []models.Suggestion{{Label: text, Coords: models.Coordinates{Lat: 123, Lng: 0}}}, nil
}

// planar treats one degree as one kilometre travelled at 1 m/s
type planar struct{}

func (planar) dist(a, b models.Coordinates) distance.DistanceResult {
	d := math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng) * 1000
	return distance.DistanceResult{DistanceMeters: d, DurationSecs: d}
}

func (p planar) GetDistance(ctx context.Context, a, b models.Coordinates) (*distance.DistanceResult, error) {
	r := p.dist(a, b)
	return &r, nil
}

func (p planar) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]distance.DistanceResult, error) {
	m := make([][]distance.DistanceResult, len(points))
	for i := range points {
		m[i] = make([]distance.DistanceResult, len(points))
		for j := range points {
			m[i][j] = p.dist(points[i], points[j])
		}
	}
	return m, nil
}

func (p planar) GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, dests []models.Coordinates) ([]distance.DistanceResult, error) {
	out := make([]distance.DistanceResult, len(dests))
	for i, d := range dests {
		out[i] = p.dist(origin, d)
	}
	return out, nil
}

func (planar) PrewarmCache(ctx context.Context, points []models.Coordinates) error {
	return nil
}

type fixture struct {
	planner *Planner
	surface *mapsurface.MemorySurface
	store   *waypoints.Store
	router  *lineRouter
}

func setup(t *testing.T, locator geolocation.Locator, initial ...models.Waypoint) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	style, err := mapsurface.LookupStyle(mapsurface.DefaultStyleID)
	require.NoError(t, err)

	f := &fixture{
		surface: mapsurface.NewMemorySurface(style),
		store:   waypoints.NewStore(initial),
		router:  &lineRouter{},
	}
	route := directions.NewService(f.router, nil, directions.ServiceConfig{Debounce: 5 * time.Millisecond}, logger)
	t.Cleanup(route.Close)

	f.planner = New(Deps{
		Store:     f.store,
		Surface:   f.surface,
		Route:     route,
		Camera:    camera.DefaultOptions(),
		Suggester: placeSuggester{},
		Search:    search.Config{Quiet: 5 * time.Millisecond},
		Optimizer: optimize.New(planar{}, optimize.MetricDistance, logger),
		Locator:   locator,
		Center:    models.Coordinates{Lat: 39.8283, Lng: -98.5795},
	}, logger)
	t.Cleanup(f.planner.Close)
	return f
}

func stop(id string, lat, lng float64) models.Waypoint {
	return models.Waypoint{ID: id, Name: id, Coord: &models.Coordinates{Lat: lat, Lng: lng}, Category: models.CategoryStop}
}

func shaping(id string, lat, lng float64) models.Waypoint {
	w := stop(id, lat, lng)
	w.Category = models.CategoryShaping
	return w
}

func ids(views []models.WaypointView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestAddDrawsMarkersAndRoute(t *testing.T) {
	f := setup(t, nil)

	a, err := f.planner.Add("Home", models.Coordinates{Lat: 1, Lng: 1}, models.CategoryStop)
	require.NoError(t, err)
	_, err = f.planner.Add("Work", models.Coordinates{Lat: 2, Lng: 2}, models.CategoryStop)
	require.NoError(t, err)

	assert.Len(t, f.surface.Markers(), 2)
	require.Eventually(t, func() bool { return len(f.surface.RouteLine()) == 2 }, time.Second, 5*time.Millisecond)

	views := f.planner.Views()
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[0].Position)
	require.NotNil(t, views[0].LegToNext)
	assert.Equal(t, 1000.0, views[0].LegToNext.DistanceMeters)
	assert.Nil(t, views[1].LegToNext)
	assert.Equal(t, a.ID, views[0].ID)

	summary := f.planner.Route()
	assert.Equal(t, 60.0, summary.TotalDurationSecs)
	assert.Equal(t, 2, summary.Points)
}

func TestAddRejectsInvalidCoordinate(t *testing.T) {
	f := setup(t, nil)

	_, err := f.planner.Add("Nowhere", models.Coordinates{Lat: 95, Lng: 0}, models.CategoryStop)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.Empty(t, f.planner.Views())
}

func TestContextMenuAppendsStop(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1))
	at := models.Coordinates{Lat: 40.7128, Lng: -74.006}

	f.surface.RightClick(at)

	views := f.planner.Views()
	require.Len(t, views, 2)
	assert.Equal(t, at.String(), views[1].Name)
	assert.Equal(t, models.CategoryStop, views[1].Category)
	assert.Len(t, f.surface.Markers(), 2)
}

func TestLiteralSearchResolvesAndFlies(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1))

	wp, err := f.planner.BeginStop(0, models.CategoryStop)
	require.NoError(t, err)
	assert.False(t, f.planner.CanDrag())
	assert.Len(t, f.surface.Markers(), 1)

	view, err := f.planner.Type(wp.ID, "40.7128, -74.0060")
	require.NoError(t, err)
	require.NotNil(t, view.Literal)

	got, ok, err := f.planner.Accept(wp.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40.7128, got.Coord.Lat)
	assert.False(t, got.IsEditing)

	assert.Equal(t, float64(camera.ZoomResult), f.surface.Camera().Zoom)
	assert.Len(t, f.surface.Markers(), 2)
	assert.True(t, f.planner.CanDrag())

	_, err = f.planner.Suggestions(wp.ID)
	assert.ErrorIs(t, err, ErrNoSearch)
}

func TestSuggestionSelect(t *testing.T) {
	f := setup(t, nil)

	wp, err := f.planner.InsertShapingPointAfter(-1)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryShaping, wp.Category)

	_, err = f.planner.Type(wp.ID, "Times Square")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v, err := f.planner.Suggestions(wp.ID)
		return err == nil && v.State == search.StateSuggestionsShown
	}, time.Second, 5*time.Millisecond)

	got, ok, err := f.planner.Select(wp.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Times Square South", got.Name)
	assert.Equal(t, models.Coordinates{Lat: 40.75, Lng: -73.99}, *got.Coord)
}

func TestAcceptWithNothingKeepsEditing(t *testing.T) {
	f := setup(t, nil)
	wp, err := f.planner.BeginStop(-1, models.CategoryFood)
	require.NoError(t, err)

	_, ok, err := f.planner.Accept(wp.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	w, found := f.store.Snapshot().Find(wp.ID)
	require.True(t, found)
	assert.True(t, w.IsEditing)
}

func TestCancelEditRemovesWaypoint(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1))
	wp, err := f.planner.BeginStop(0, models.CategoryStop)
	require.NoError(t, err)
	_, err = f.planner.Type(wp.ID, "Central Park")
	require.NoError(t, err)

	require.NoError(t, f.planner.CancelEdit(wp.ID))

	assert.Equal(t, []string{"a"}, ids(f.planner.Views()))
	_, err = f.planner.Type(wp.ID, "more")
	assert.ErrorIs(t, err, ErrNoSearch)
}

func TestDeleteEditingWaypointDropsSearch(t *testing.T) {
	f := setup(t, nil)
	wp, err := f.planner.BeginStop(-1, models.CategoryStop)
	require.NoError(t, err)

	require.NoError(t, f.planner.Delete(wp.ID))
	assert.Empty(t, f.planner.Views())
	_, err = f.planner.Suggestions(wp.ID)
	assert.ErrorIs(t, err, ErrNoSearch)

	assert.ErrorIs(t, f.planner.Delete("missing"), ErrNotFound)
}

func TestUpdateDetailsDoesNotReroute(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1), stop("b", 2, 2))
	f.planner.Start(context.Background())
	require.Eventually(t, func() bool { return f.router.count() == 1 }, time.Second, 5*time.Millisecond)

	name := "Office"
	dur := 45
	food := models.CategoryFood
	w, err := f.planner.UpdateDetails("b", reorder.Details{Name: &name, Duration: &dur, Category: &food})
	require.NoError(t, err)
	assert.Equal(t, "Office", w.Name)
	assert.Equal(t, 45, w.PlannedDurationMinutes)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.router.count())
}

func TestShapingCategoryEditRegroupsLegsWithoutRequest(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1), stop("b", 2, 2), stop("c", 3, 3))
	f.planner.Start(context.Background())
	require.Eventually(t, func() bool { return len(f.surface.RouteLine()) == 3 }, time.Second, 5*time.Millisecond)
	require.Len(t, f.planner.Route().Legs, 2)

	shape := models.CategoryShaping
	_, err := f.planner.UpdateDetails("b", reorder.Details{Category: &shape})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.router.count())

	views := f.planner.Views()
	require.NotNil(t, views[0].LegToNext)
	assert.Equal(t, 2000.0, views[0].LegToNext.DistanceMeters)
	assert.Nil(t, views[1].LegToNext)
	assert.Equal(t, []models.Leg{{DurationSecs: 120, DistanceMeters: 2000}}, f.planner.Route().Legs)

	stopCat := models.CategoryStop
	_, err = f.planner.UpdateDetails("b", reorder.Details{Category: &stopCat})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.router.count())
	assert.Len(t, f.planner.Route().Legs, 2)
}

func TestDragAndReorderKeepCamera(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1), stop("b", 2, 2))
	f.planner.Start(context.Background())
	fits := f.surface.Counts().Fits
	require.Equal(t, 1, fits)

	ref, ok := f.planner.MarkerFor("a")
	require.True(t, ok)
	require.NoError(t, f.surface.DragMarker(ref, models.Coordinates{Lat: 5, Lng: 5}))
	got, _ := f.store.Snapshot().Find("a")
	require.Equal(t, models.Coordinates{Lat: 5, Lng: 5}, *got.Coord)
	assert.Equal(t, fits, f.surface.Counts().Fits, "drag must not refit")

	require.NoError(t, f.planner.Reorder("a", 0, 1))
	assert.Equal(t, []string{"b", "a"}, ids(f.planner.Views()))
	assert.Equal(t, fits, f.surface.Counts().Fits, "reorder must not refit")
	assert.Equal(t, 0, f.surface.Counts().Flights)
}

func TestRejectedResolveKeepsSearchOpen(t *testing.T) {
	f := setup(t, nil)
	f.planner.suggester = outOfRange{}

	wp, err := f.planner.BeginStop(-1, models.CategoryStop)
	require.NoError(t, err)
	_, err = f.planner.Type(wp.ID, "Atlantis")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v, err := f.planner.Suggestions(wp.ID)
		return err == nil && v.State == search.StateSuggestionsShown
	}, time.Second, 5*time.Millisecond)

	_, ok, err := f.planner.Accept(wp.ID)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.False(t, ok)

	w, found := f.store.Snapshot().Find(wp.ID)
	require.True(t, found)
	assert.True(t, w.IsEditing)

	v, err := f.planner.Suggestions(wp.ID)
	require.NoError(t, err, "search stays open after a rejected resolve")
	assert.Equal(t, search.StateSuggestionsShown, v.State)

	view, err := f.planner.Type(wp.ID, "40.7128, -74.0060")
	require.NoError(t, err)
	require.NotNil(t, view.Literal)
	got, ok, err := f.planner.Accept(wp.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40.7128, got.Coord.Lat)
}

func TestReorderRejectedWhileEditing(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1), stop("b", 2, 2))
	_, err := f.planner.BeginStop(1, models.CategoryStop)
	require.NoError(t, err)

	err = f.planner.Reorder("a", 0, 1)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.Equal(t, "a", f.planner.Views()[0].ID)
}

func TestOptimizeKeepsShapingWithStop(t *testing.T) {
	f := setup(t, nil,
		stop("start", 0, 0),
		stop("far", 0, 3),
		shaping("far-via", 0.5, 3),
		stop("near", 0, 1),
		stop("mid", 0, 2),
	)

	order, err := f.planner.OptimizeOrder(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "near", "mid", "far", "far-via"}, order)
	assert.Equal(t, order, ids(f.planner.Views()))
}

func TestOptimizeRejectedWhileEditing(t *testing.T) {
	f := setup(t, nil, stop("a", 0, 0), stop("b", 0, 2), stop("c", 0, 1))
	_, err := f.planner.BeginStop(2, models.CategoryStop)
	require.NoError(t, err)

	_, err = f.planner.OptimizeOrder(context.Background(), false)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestStartRecentersOnLocatedPosition(t *testing.T) {
	here := models.Coordinates{Lat: 51.5, Lng: -0.12}
	f := setup(t, geolocation.StaticLocator{Coord: here})

	f.planner.Start(context.Background())

	cam := f.surface.Camera()
	assert.Equal(t, here, cam.Center)
	assert.Equal(t, float64(camera.ZoomRecenter), cam.Zoom)
}

func TestStartFallsBackToDefaultCenter(t *testing.T) {
	f := setup(t, nil)

	f.planner.Start(context.Background())

	assert.Equal(t, models.Coordinates{Lat: 39.8283, Lng: -98.5795}, f.surface.Camera().Center)
}

func TestStartFitsExistingWaypoints(t *testing.T) {
	f := setup(t, geolocation.StaticLocator{Coord: models.Coordinates{Lat: 51.5, Lng: -0.12}},
		stop("a", 1, 1), stop("b", 3, 3))

	f.planner.Start(context.Background())

	assert.Equal(t, 1, f.surface.Counts().Fits)
	assert.Equal(t, 0, f.surface.Counts().Flights)
	assert.Len(t, f.surface.Markers(), 2)
}

func TestSetStyleRestoresRouteWithoutRequest(t *testing.T) {
	f := setup(t, nil, stop("a", 1, 1), stop("b", 2, 2))
	f.planner.Start(context.Background())
	require.Eventually(t, func() bool { return len(f.surface.RouteLine()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.planner.SetStyle("outdoors"))

	assert.Equal(t, "outdoors", f.surface.Style().ID)
	assert.Len(t, f.surface.Markers(), 2)
	assert.Len(t, f.surface.RouteLine(), 2)
	assert.Equal(t, 1, f.router.count())

	assert.Error(t, f.planner.SetStyle("neon"))
}

func TestRouteFailureIsReported(t *testing.T) {
	f := setup(t, nil)
	f.router.err = errors.New("upstream down")

	_, err := f.planner.Add("A", models.Coordinates{Lat: 1, Lng: 1}, models.CategoryStop)
	require.NoError(t, err)
	_, err = f.planner.Add("B", models.Coordinates{Lat: 2, Lng: 2}, models.CategoryStop)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(f.planner.Route().LastError, "upstream down")
	}, time.Second, 5*time.Millisecond)
}

func TestFocus(t *testing.T) {
	f := setup(t, nil, stop("a", 7, 8))

	require.NoError(t, f.planner.Focus("a"))
	assert.Equal(t, models.Coordinates{Lat: 7, Lng: 8}, f.surface.Camera().Center)
	assert.Equal(t, float64(camera.ZoomFocus), f.surface.Camera().Zoom)

	assert.ErrorIs(t, f.planner.Focus("zzz"), ErrNotFound)
}
