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

// FileDistanceCacheData represents the structure of the cache file
type FileDistanceCacheData struct {
	Entries []models.DistanceCacheEntry `json:"entries"`
}

// FileDistanceCache is a file-based implementation of DistanceCacheRepository
type FileDistanceCache struct {
	filePath string
	data     *FileDistanceCacheData
	index    map[string]int // coordinate pair -> position in Entries
	mu       sync.RWMutex
	log      *logrus.Entry
}

// NewFileDistanceCache opens (or creates) the distance cache file at filePath
func NewFileDistanceCache(filePath string, logger *logrus.Logger) (*FileDistanceCache, error) {
	cache := &FileDistanceCache{
		filePath: filePath,
		data:     &FileDistanceCacheData{Entries: []models.DistanceCacheEntry{}},
		index:    make(map[string]int),
		log:      logger.WithField("component", "cache"),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	cache.log.WithFields(logrus.Fields{"path": filePath, "entries": len(cache.data.Entries)}).Info("[CACHE] Loaded distance cache")
	return cache, nil
}

func (c *FileDistanceCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		c.data = &FileDistanceCacheData{Entries: []models.DistanceCacheEntry{}}
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c.data); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	if c.data.Entries == nil {
		c.data.Entries = []models.DistanceCacheEntry{}
	}

	c.rebuildIndex()
	return nil
}

func (c *FileDistanceCache) saveUnlocked() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	return writeFileAtomic(c.filePath, data)
}

func (c *FileDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx, ok := c.index[MakeDistanceKey(origin, dest)]; ok {
		// copy so callers cannot modify cache data without the lock
		entryCopy := c.data.Entries[idx]
		return &entryCopy, nil
	}
	return nil, nil
}

func (c *FileDistanceCache) GetBatch(ctx context.Context, pairs []struct{ Origin, Dest models.Coordinates }) (map[string]*models.DistanceCacheEntry, error) {
	result := make(map[string]*models.DistanceCacheEntry)

	for _, pair := range pairs {
		entry, err := c.Get(ctx, pair.Origin, pair.Dest)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			result[MakeDistanceKey(pair.Origin, pair.Dest)] = entry
		}
	}

	return result, nil
}

func (c *FileDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putLocked(*entry)
	return c.saveUnlocked()
}

func (c *FileDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		c.putLocked(entry)
	}
	return c.saveUnlocked()
}

func (c *FileDistanceCache) putLocked(entry models.DistanceCacheEntry) {
	key := MakeDistanceKey(entry.Origin, entry.Destination)
	if idx, ok := c.index[key]; ok {
		c.data.Entries[idx] = entry
		return
	}
	c.data.Entries = append(c.data.Entries, entry)
	c.index[key] = len(c.data.Entries) - 1
}

func (c *FileDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries = []models.DistanceCacheEntry{}
	c.index = make(map[string]int)
	return c.saveUnlocked()
}

// Len returns the number of cached pairs
func (c *FileDistanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Entries)
}

// MakeDistanceKey creates a unique key for a coordinate pair, rounded to ~1m
func MakeDistanceKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// rebuildIndex must be called with the mutex held
func (c *FileDistanceCache) rebuildIndex() {
	c.index = make(map[string]int)
	for i := range c.data.Entries {
		c.index[MakeDistanceKey(c.data.Entries[i].Origin, c.data.Entries[i].Destination)] = i
	}
}
