package testutil

import (
	"context"
	"sync"

	"iter-viae/internal/database"
	"iter-viae/internal/models"
)

// MockDistanceCache is a map-backed DistanceCacheRepository that counts calls
type MockDistanceCache struct {
	mu       sync.Mutex
	entries  map[string]*models.DistanceCacheEntry
	GetCalls int
	SetCalls int
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{entries: make(map[string]*models.DistanceCacheEntry)}
}

func (c *MockDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetCalls++
	return c.entries[database.MakeDistanceKey(origin, dest)], nil
}

func (c *MockDistanceCache) GetBatch(ctx context.Context, pairs []struct{ Origin, Dest models.Coordinates }) (map[string]*models.DistanceCacheEntry, error) {
	result := make(map[string]*models.DistanceCacheEntry)
	for _, pair := range pairs {
		if entry, _ := c.Get(ctx, pair.Origin, pair.Dest); entry != nil {
			result[database.MakeDistanceKey(pair.Origin, pair.Dest)] = entry
		}
	}
	return result, nil
}

func (c *MockDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetCalls++
	e := *entry
	c.entries[database.MakeDistanceKey(e.Origin, e.Destination)] = &e
	return nil
}

func (c *MockDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	for i := range entries {
		c.Set(ctx, &entries[i])
	}
	return nil
}

func (c *MockDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.DistanceCacheEntry)
	return nil
}

// Count returns the number of entries in the cache
func (c *MockDistanceCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
