package geolocation

import (
	"context"
	"errors"

	"iter-viae/internal/models"
)

// ErrUnavailable is returned when no position can be determined
var ErrUnavailable = errors.New("geolocation unavailable")

// Locator performs a one-shot position lookup
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// StaticLocator always reports the same position
type StaticLocator struct {
	Coord models.Coordinates
}

func (s StaticLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	return s.Coord, nil
}

// NoLocator never knows where it is
type NoLocator struct{}

func (NoLocator) Locate(context.Context) (models.Coordinates, error) {
	return models.Coordinates{}, ErrUnavailable
}
