package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"iter-viae/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, key string) (*models.RouteGeometry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var geometryJSON, legsJSON string
	err := r.store.db.QueryRowContext(ctx,
		`SELECT geometry, legs FROM route_cache WHERE route_key = ?`, key,
	).Scan(&geometryJSON, &legsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	geom, err := geojson.UnmarshalGeometry([]byte(geometryJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached geometry: %w", err)
	}
	line, ok := geom.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("cached geometry is %s, not LineString", geom.Type)
	}

	route := &models.RouteGeometry{Key: key, Line: line}
	if err := json.Unmarshal([]byte(legsJSON), &route.Legs); err != nil {
		return nil, fmt.Errorf("failed to decode cached legs: %w", err)
	}
	return route, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, route *models.RouteGeometry) error {
	if route == nil || route.Key == "" {
		return fmt.Errorf("route cache entry needs a key")
	}

	geometryJSON, err := geojson.NewGeometry(route.Line).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode geometry: %w", err)
	}
	legsJSON, err := json.Marshal(route.Legs)
	if err != nil {
		return fmt.Errorf("failed to encode legs: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO route_cache (route_key, geometry, legs, stored_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(stored_at), 0) + 1 FROM route_cache))`,
		route.Key, string(geometryJSON), string(legsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}

	// evict everything past the newest routeLimit rows
	_, err = tx.ExecContext(ctx,
		`DELETE FROM route_cache WHERE route_key NOT IN (
			SELECT route_key FROM route_cache ORDER BY stored_at DESC LIMIT ?
		)`, r.store.routeLimit)
	if err != nil {
		return fmt.Errorf("failed to trim route cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *routeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM route_cache"); err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}
	return nil
}
