package database

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"iter-viae/internal/models"
)

// MemoryDistanceCache keeps distance lookups for the life of the process
type MemoryDistanceCache struct {
	mu      sync.RWMutex
	entries map[string]models.DistanceCacheEntry
}

func NewMemoryDistanceCache() *MemoryDistanceCache {
	return &MemoryDistanceCache{entries: make(map[string]models.DistanceCacheEntry)}
}

func (c *MemoryDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[MakeDistanceKey(origin, dest)]; ok {
		return &e, nil
	}
	return nil, nil
}

func (c *MemoryDistanceCache) GetBatch(ctx context.Context, pairs []struct{ Origin, Dest models.Coordinates }) (map[string]*models.DistanceCacheEntry, error) {
	result := make(map[string]*models.DistanceCacheEntry)
	for _, pair := range pairs {
		e, _ := c.Get(ctx, pair.Origin, pair.Dest)
		if e != nil {
			result[MakeDistanceKey(pair.Origin, pair.Dest)] = e
		}
	}
	return result, nil
}

func (c *MemoryDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[MakeDistanceKey(entry.Origin, entry.Destination)] = *entry
	return nil
}

func (c *MemoryDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[MakeDistanceKey(e.Origin, e.Destination)] = e
	}
	return nil
}

func (c *MemoryDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.DistanceCacheEntry)
	return nil
}

// MemoryRouteCache is an LRU-bounded in-process RouteCacheRepository
type MemoryRouteCache struct {
	cache *lru.Cache[string, *models.RouteGeometry]
}

func NewMemoryRouteCache(size int) (*MemoryRouteCache, error) {
	if size <= 0 {
		size = DefaultRouteCacheSize
	}
	cache, err := lru.New[string, *models.RouteGeometry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create route cache: %w", err)
	}
	return &MemoryRouteCache{cache: cache}, nil
}

func (c *MemoryRouteCache) Get(ctx context.Context, key string) (*models.RouteGeometry, error) {
	r, ok := c.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return cloneRoute(r), nil
}

func (c *MemoryRouteCache) Set(ctx context.Context, route *models.RouteGeometry) error {
	if route == nil || route.Key == "" {
		return fmt.Errorf("route cache entry needs a key")
	}
	c.cache.Add(route.Key, cloneRoute(route))
	return nil
}

func (c *MemoryRouteCache) Clear(ctx context.Context) error {
	c.cache.Purge()
	return nil
}

// Len returns the number of cached routes
func (c *MemoryRouteCache) Len() int {
	return c.cache.Len()
}

// MemoryStore is the CacheStore used when nothing should touch disk
type MemoryStore struct {
	distances *MemoryDistanceCache
	routes    *MemoryRouteCache
}

func NewMemoryStore(routeCacheSize int) (*MemoryStore, error) {
	routes, err := NewMemoryRouteCache(routeCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{distances: NewMemoryDistanceCache(), routes: routes}, nil
}

func (s *MemoryStore) Close() error                          { return nil }
func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }
func (s *MemoryStore) DistanceCache() DistanceCacheRepository {
	return s.distances
}
func (s *MemoryStore) RouteCache() RouteCacheRepository {
	return s.routes
}
