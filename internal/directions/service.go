package directions

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/database"
	"iter-viae/internal/models"
)

// DefaultDebounce is the quiet period before a triggered route request goes out
const DefaultDebounce = 300 * time.Millisecond

// Result is an applied route state. A nil Geometry means no route is shown.
// PointIDs names every routed waypoint; Geometry.Legs[k] runs from PointIDs[k]
// to PointIDs[k+1].
type Result struct {
	Token    uint64
	Key      string
	Geometry *models.RouteGeometry
	PointIDs []string
	Stale    bool
}

// StopLegs returns the stop-to-stop legs under the categories in list
func (r Result) StopLegs(list []models.Waypoint) []models.Leg {
	if r.Geometry == nil {
		return nil
	}
	_, legs := StopLegs(r.PointIDs, r.Geometry.Legs, list)
	return legs
}

// LegsByWaypoint maps each stop id to the leg that starts there. Shaping points
// in list never start a leg; their metrics fold into the stop before them.
func (r Result) LegsByWaypoint(list []models.Waypoint) map[string]models.Leg {
	out := make(map[string]models.Leg)
	if r.Geometry == nil {
		return out
	}
	starts, legs := StopLegs(r.PointIDs, r.Geometry.Legs, list)
	for k, id := range starts {
		out[id] = legs[k]
	}
	return out
}

// ServiceConfig tunes the route service. CacheNamespace separates persistent
// cache entries of different routing profiles or servers.
type ServiceConfig struct {
	Debounce          time.Duration
	DiagnosticsBuffer int
	CacheNamespace    string
}

// Service turns waypoint snapshots into route geometry. Requests are keyed by the
// effective coordinate sequence; every request carries a token issued when it goes
// out and only a token newer than the last applied one may change the route.
type Service struct {
	router    Router
	cache     database.RouteCacheRepository
	namespace string
	log       *logrus.Entry
	diag   chan error

	debounced func(func())
	ctx       context.Context
	cancel    context.CancelFunc

	mu            sync.Mutex
	issued        uint64
	applied       uint64
	requested     string
	haveRequested bool
	current       Result

	notifyMu  sync.Mutex
	listeners []func(Result)
}

// NewService creates a route service. cache may be nil.
func NewService(router Router, cache database.RouteCacheRepository, cfg ServiceConfig, logger *logrus.Logger) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.DiagnosticsBuffer <= 0 {
		cfg.DiagnosticsBuffer = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		router:    router,
		cache:     cache,
		namespace: cfg.CacheNamespace,
		log:       logger.WithField("component", "route"),
		diag:      make(chan error, cfg.DiagnosticsBuffer),
		debounced: debounce.New(cfg.Debounce),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe registers fn for every applied result, in token order
func (s *Service) Subscribe(fn func(Result)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Diagnostics carries routing failures. Sends never block; when the buffer is
// full the error is only logged.
func (s *Service) Diagnostics() <-chan error {
	return s.diag
}

// Current returns the last applied result
func (s *Service) Current() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Replay returns the last good geometry without issuing a request
func (s *Service) Replay() *models.RouteGeometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Geometry
}

// Trigger schedules a recompute for list after the quiet period. It is a no-op
// when the effective sequence matches the last requested one. Fewer than two
// routable points clear the route immediately.
func (s *Service) Trigger(list []models.Waypoint) bool {
	points := PointsFrom(list)
	key := SequenceKey(points)

	s.mu.Lock()
	if s.haveRequested && key == s.requested {
		s.mu.Unlock()
		return false
	}
	s.requested = key
	s.haveRequested = true
	s.mu.Unlock()

	if len(points) < 2 {
		s.debounced(func() {})
		s.clear()
		return true
	}

	ids := pointIDs(list)
	s.debounced(func() {
		s.run(s.ctx, points, ids, key)
	})
	return true
}

// Compute routes list right away, bypassing the debounce
func (s *Service) Compute(ctx context.Context, list []models.Waypoint) (Result, error) {
	points := PointsFrom(list)
	key := SequenceKey(points)

	s.mu.Lock()
	s.requested = key
	s.haveRequested = true
	s.mu.Unlock()

	if len(points) < 2 {
		return s.clear(), nil
	}
	return s.run(ctx, points, pointIDs(list), key)
}

// Close drops any pending request and cancels in-flight ones
func (s *Service) Close() {
	s.debounced(func() {})
	s.cancel()
}

func (s *Service) nextToken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

func (s *Service) clear() Result {
	res := s.apply(Result{Token: s.nextToken()})
	if !res.Stale {
		s.log.Debug("[ROUTE] Cleared route, fewer than two routable waypoints")
	}
	return res
}

func (s *Service) cacheKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *Service) run(ctx context.Context, points []Point, ids []string, key string) (Result, error) {
	token := s.nextToken()
	entry := s.log.WithFields(logrus.Fields{"token": token, "key": key, "points": len(points)})

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.cacheKey(key))
		if err != nil {
			entry.WithError(err).Warn("[ROUTE] Route cache lookup failed")
		}
		if cached != nil && len(cached.Legs) == len(points)-1 {
			entry.Debug("[ROUTE] Route cache hit")
			hit := *cached
			hit.Key = key
			return s.apply(Result{Token: token, Key: key, Geometry: &hit, PointIDs: ids}), nil
		}
	}

	entry.Info("[ROUTE] Requesting route")
	geom, err := s.router.Route(ctx, points)
	if err != nil {
		s.fail(token, key, err)
		return Result{Token: token, Key: key}, err
	}
	geom.Key = key

	if s.cache != nil {
		stored := *geom
		stored.Key = s.cacheKey(key)
		if err := s.cache.Set(ctx, &stored); err != nil {
			entry.WithError(err).Warn("[ROUTE] Failed to store route in cache")
		}
	}

	res := s.apply(Result{Token: token, Key: key, Geometry: geom, PointIDs: ids})
	if res.Stale {
		entry.Debug("[ROUTE] Discarded stale route response")
	} else {
		entry.WithFields(logrus.Fields{
			"legs":            len(geom.Legs),
			"distance_meters": geom.TotalDistance(),
		}).Info("[ROUTE] Route applied")
	}
	return res, nil
}

// apply publishes res unless a newer token was already applied. The cached
// (key, geometry) pair is only replaced when the key differs.
func (s *Service) apply(res Result) Result {
	s.mu.Lock()
	if res.Token <= s.applied {
		s.mu.Unlock()
		res.Stale = true
		return res
	}
	s.applied = res.Token

	if res.Geometry != nil && s.current.Geometry != nil && res.Key == s.current.Key {
		res.Geometry = s.current.Geometry
	}
	s.current = res
	applied := s.current

	s.notifyMu.Lock()
	s.mu.Unlock()
	for _, fn := range s.listeners {
		fn(applied)
	}
	s.notifyMu.Unlock()

	return applied
}

// fail keeps the last good route. Older in-flight responses are still discarded
// so the route never regresses to an earlier sequence.
func (s *Service) fail(token uint64, key string, err error) {
	s.mu.Lock()
	if token > s.applied {
		s.applied = token
	}
	if s.haveRequested && s.requested == key {
		// let the same sequence be retried on the next trigger
		s.haveRequested = false
	}
	s.mu.Unlock()

	s.log.WithError(err).WithFields(logrus.Fields{"token": token, "key": key}).Error("[ROUTE] Route computation failed, keeping last good route")

	select {
	case s.diag <- err:
	default:
		s.log.Warn("[ROUTE] Diagnostics buffer full, dropping error")
	}
}

func pointIDs(list []models.Waypoint) []string {
	var ids []string
	for _, w := range list {
		if w.Routable() {
			ids = append(ids, w.ID)
		}
	}
	return ids
}
