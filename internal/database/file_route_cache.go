package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

// DefaultRouteCacheSize bounds how many route geometries a cache keeps
const DefaultRouteCacheSize = 64

type fileRouteCacheData struct {
	Entries []models.RouteGeometry `json:"entries"`
}

// FileRouteCache is a file-based RouteCacheRepository. Entries are kept in
// insertion order and the oldest is evicted once the cache is full.
type FileRouteCache struct {
	filePath string
	limit    int
	entries  []models.RouteGeometry
	mu       sync.RWMutex
	log      *logrus.Entry
}

// NewFileRouteCache opens (or creates) the route cache file at filePath
func NewFileRouteCache(filePath string, limit int, logger *logrus.Logger) (*FileRouteCache, error) {
	if limit <= 0 {
		limit = DefaultRouteCacheSize
	}
	c := &FileRouteCache{
		filePath: filePath,
		limit:    limit,
		log:      logger.WithField("component", "cache"),
	}

	data, err := os.ReadFile(filePath)
	switch {
	case os.IsNotExist(err):
		if err := c.saveUnlocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read route cache file: %w", err)
	default:
		var stored fileRouteCacheData
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("failed to parse route cache file: %w", err)
		}
		c.entries = stored.Entries
		c.trimLocked()
	}

	c.log.WithFields(logrus.Fields{"path": filePath, "entries": len(c.entries)}).Info("[CACHE] Loaded route cache")
	return c, nil
}

func (c *FileRouteCache) Get(ctx context.Context, key string) (*models.RouteGeometry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.entries {
		if c.entries[i].Key == key {
			return cloneRoute(&c.entries[i]), nil
		}
	}
	return nil, nil
}

func (c *FileRouteCache) Set(ctx context.Context, route *models.RouteGeometry) error {
	if route == nil || route.Key == "" {
		return fmt.Errorf("route cache entry needs a key")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].Key == route.Key {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	c.entries = append(c.entries, *cloneRoute(route))
	c.trimLocked()
	return c.saveUnlocked()
}

func (c *FileRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	return c.saveUnlocked()
}

// Len returns the number of cached routes
func (c *FileRouteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FileRouteCache) trimLocked() {
	if over := len(c.entries) - c.limit; over > 0 {
		c.entries = append([]models.RouteGeometry(nil), c.entries[over:]...)
	}
}

func (c *FileRouteCache) saveUnlocked() error {
	data, err := json.Marshal(fileRouteCacheData{Entries: c.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal route cache: %w", err)
	}
	return writeFileAtomic(c.filePath, data)
}

func cloneRoute(r *models.RouteGeometry) *models.RouteGeometry {
	out := &models.RouteGeometry{Key: r.Key}
	out.Line = append(out.Line, r.Line...)
	out.Legs = append(out.Legs, r.Legs...)
	return out
}
