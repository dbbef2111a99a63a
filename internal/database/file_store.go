package database

import (
	"context"

	"github.com/sirupsen/logrus"
)

// FileStore is the CacheStore backed by JSON files under the data directory
type FileStore struct {
	distances *FileDistanceCache
	routes    *FileRouteCache
}

// NewFileStore opens both cache files under dataDir
func NewFileStore(dataDir string, routeCacheSize int, logger *logrus.Logger) (*FileStore, error) {
	distPath, err := DistanceCachePath(dataDir)
	if err != nil {
		return nil, err
	}
	routePath, err := RouteCachePath(dataDir)
	if err != nil {
		return nil, err
	}

	distances, err := NewFileDistanceCache(distPath, logger)
	if err != nil {
		return nil, err
	}
	routes, err := NewFileRouteCache(routePath, routeCacheSize, logger)
	if err != nil {
		return nil, err
	}
	return &FileStore{distances: distances, routes: routes}, nil
}

func (s *FileStore) Close() error                          { return nil }
func (s *FileStore) HealthCheck(ctx context.Context) error { return nil }

func (s *FileStore) DistanceCache() DistanceCacheRepository {
	return s.distances
}

func (s *FileStore) RouteCache() RouteCacheRepository {
	return s.routes
}
