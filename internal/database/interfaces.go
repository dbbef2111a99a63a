package database

import (
	"context"

	"iter-viae/internal/models"
)

// CacheStore bundles the cache repositories of one backend
type CacheStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	DistanceCache() DistanceCacheRepository
	RouteCache() RouteCacheRepository
}

// DistanceCacheRepository handles distance cache persistence
type DistanceCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	GetBatch(ctx context.Context, pairs []struct{ Origin, Dest models.Coordinates }) (map[string]*models.DistanceCacheEntry, error)
	Set(ctx context.Context, entry *models.DistanceCacheEntry) error
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
	Clear(ctx context.Context) error
}

// RouteCacheRepository stores computed route geometry keyed by coordinate sequence.
// Get returns nil, nil on a miss.
type RouteCacheRepository interface {
	Get(ctx context.Context, key string) (*models.RouteGeometry, error)
	Set(ctx context.Context, route *models.RouteGeometry) error
	Clear(ctx context.Context) error
}
