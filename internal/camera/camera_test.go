package camera

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
)

func setupCamera(t *testing.T) (*Controller, *mapsurface.MemorySurface) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	surface := mapsurface.NewMemorySurface(mapsurface.MapStyle{})
	return NewController(surface, DefaultOptions(), logger), surface
}

func TestUpdateRefitsOnlyWhenCountChanges(t *testing.T) {
	c, surface := setupCamera(t)

	a := models.Coordinates{Lat: 1, Lng: 1}
	b := models.Coordinates{Lat: 2, Lng: 3}

	assert.True(t, c.Update([]models.Coordinates{a}))
	assert.True(t, c.Update([]models.Coordinates{a, b}))

	// dragging b moves it but keeps the count
	assert.False(t, c.Update([]models.Coordinates{a, {Lat: 50, Lng: 50}}))
	// reorder
	assert.False(t, c.Update([]models.Coordinates{b, a}))

	assert.Equal(t, 2, surface.Counts().Fits)
}

func TestUpdateCoversAllPointsWithMaxZoom(t *testing.T) {
	c, surface := setupCamera(t)

	c.Update([]models.Coordinates{{Lat: 10, Lng: -5}, {Lat: -4, Lng: 7}, {Lat: 2, Lng: 0}})

	cam := surface.Camera()
	require.NotNil(t, cam.Bound)
	assert.Equal(t, -5.0, cam.Bound.Min.Lon())
	assert.Equal(t, -4.0, cam.Bound.Min.Lat())
	assert.Equal(t, 7.0, cam.Bound.Max.Lon())
	assert.Equal(t, 10.0, cam.Bound.Max.Lat())
	assert.Equal(t, 14.0, cam.MaxZoom)
	assert.Equal(t, 80.0, cam.Padding)
}

func TestUpdateToEmptyDoesNotFit(t *testing.T) {
	c, surface := setupCamera(t)

	c.Update([]models.Coordinates{{Lat: 1, Lng: 1}})
	assert.False(t, c.Update(nil))
	assert.True(t, c.Update([]models.Coordinates{{Lat: 1, Lng: 1}}))

	assert.Equal(t, 2, surface.Counts().Fits)
}

func TestFlyZoomLevels(t *testing.T) {
	c, surface := setupCamera(t)
	at := models.Coordinates{Lat: 40.7128, Lng: -74.006}

	tests := []struct {
		name string
		fly  func(models.Coordinates) error
		zoom float64
	}{
		{"recenter", c.Recenter, ZoomRecenter},
		{"focus", c.Focus, ZoomFocus},
		{"result", c.FlyToResult, ZoomResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.fly(at))
			cam := surface.Camera()
			assert.Equal(t, tt.zoom, cam.Zoom)
			assert.Equal(t, at, cam.Center)
			assert.Nil(t, cam.Bound)
		})
	}
}
