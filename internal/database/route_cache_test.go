package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/models"
)

func sampleRoute(key string) *models.RouteGeometry {
	return &models.RouteGeometry{
		Key:  key,
		Line: orb.LineString{{-74.006, 40.7128}, {-73.9855, 40.758}},
		Legs: []models.Leg{{DurationSecs: 600, DistanceMeters: 5200}},
	}
}

func TestFileRouteCachePersistsAndEvicts(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "routes.json")
	ctx := context.Background()

	cache, err := NewFileRouteCache(path, 2, logger)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Set(ctx, sampleRoute(fmt.Sprintf("r%d", i))))
	}
	assert.Equal(t, 2, cache.Len())

	reopened, err := NewFileRouteCache(path, 2, logger)
	require.NoError(t, err)

	gone, err := reopened.Get(ctx, "r0")
	require.NoError(t, err)
	assert.Nil(t, gone)

	got, err := reopened.Get(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleRoute("r2"), got)
}

func TestFileRouteCacheReplaceMovesToNewest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cache, err := NewFileRouteCache(filepath.Join(t.TempDir(), "routes.json"), 2, logger)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleRoute("a")))
	require.NoError(t, cache.Set(ctx, sampleRoute("b")))
	require.NoError(t, cache.Set(ctx, sampleRoute("a")))
	require.NoError(t, cache.Set(ctx, sampleRoute("c")))

	a, _ := cache.Get(ctx, "a")
	b, _ := cache.Get(ctx, "b")
	assert.NotNil(t, a)
	assert.Nil(t, b)
}

func TestRouteCacheReturnsCopies(t *testing.T) {
	mem, err := NewMemoryRouteCache(4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, sampleRoute("k")))
	got, _ := mem.Get(ctx, "k")
	got.Line[0] = orb.Point{0, 0}

	again, _ := mem.Get(ctx, "k")
	assert.Equal(t, orb.Point{-74.006, 40.7128}, again.Line[0])
}

func TestRouteCacheRejectsEmptyKey(t *testing.T) {
	mem, err := NewMemoryRouteCache(0)
	require.NoError(t, err)
	assert.Error(t, mem.Set(context.Background(), &models.RouteGeometry{}))
}

func TestMemoryDistanceCache(t *testing.T) {
	c := NewMemoryDistanceCache()
	ctx := context.Background()
	a := models.Coordinates{Lat: 1, Lng: 1}
	b := models.Coordinates{Lat: 2, Lng: 2}

	require.NoError(t, c.SetBatch(ctx, []models.DistanceCacheEntry{{Origin: a, Destination: b, DistanceMeters: 10}}))
	got, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, got.DistanceMeters)

	require.NoError(t, c.Clear(ctx))
	got, _ = c.Get(ctx, a, b)
	assert.Nil(t, got)
}
