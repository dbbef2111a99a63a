package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/database"

	_ "modernc.org/sqlite"
)

const schemaVersion = 2

// Store is a SQLite-backed database.CacheStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	log    *logrus.Entry

	routeLimit        int
	distanceCacheRepo database.DistanceCacheRepository
	routeCacheRepo    database.RouteCacheRepository
}

// New opens (or creates) the cache database at dbPath
func New(dbPath string, routeLimit int, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	entry := logger.WithField("component", "sqlite")
	entry.WithField("path", dbPath).Info("[CACHE] Opening SQLite database")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if routeLimit <= 0 {
		routeLimit = database.DefaultRouteCacheSize
	}

	store := &Store{
		db:         db,
		dbPath:     dbPath,
		log:        entry,
		routeLimit: routeLimit,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.distanceCacheRepo = &distanceCacheRepository{store: store}
	store.routeCacheRepo = &routeCacheRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// no schema_version table yet
		return s.createSchema()
	}

	if version < schemaVersion {
		return s.runMigrations(version)
	}
	return nil
}

const distanceCacheTable = `
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		distance_meters REAL NOT NULL,
		duration_secs REAL NOT NULL,
		PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
	);`

const routeCacheTable = `
	CREATE TABLE IF NOT EXISTS route_cache (
		route_key TEXT PRIMARY KEY,
		geometry TEXT NOT NULL,
		legs TEXT NOT NULL,
		stored_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_route_cache_stored ON route_cache(stored_at DESC);`

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	` + distanceCacheTable + routeCacheTable

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	s.log.WithField("version", schemaVersion).Info("[CACHE] SQLite schema initialized")
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	if fromVersion < 2 {
		if _, err := s.db.Exec(routeCacheTable); err != nil {
			return fmt.Errorf("failed to add route cache table: %w", err)
		}
	}

	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	if err == nil {
		s.log.WithFields(logrus.Fields{"from": fromVersion, "to": schemaVersion}).Info("[CACHE] SQLite schema migrated")
	}
	return err
}

// Close checkpoints the WAL and closes the connection
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DistanceCache() database.DistanceCacheRepository { return s.distanceCacheRepo }
func (s *Store) RouteCache() database.RouteCacheRepository       { return s.routeCacheRepo }
