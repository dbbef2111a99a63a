package camera

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
)

// Zoom levels for point focus animations
const (
	ZoomRecenter = 14
	ZoomFocus    = 15
	ZoomResult   = 16
)

// Mover is the part of the map surface the camera drives
type Mover interface {
	FitBounds(b orb.Bound, opts mapsurface.FitOptions) error
	FlyTo(center models.Coordinates, zoom float64, duration time.Duration) error
}

// Options bounds a fit animation
type Options struct {
	MaxZoom  float64
	Padding  float64
	Duration time.Duration
}

// DefaultOptions returns the fit settings used when none are configured
func DefaultOptions() Options {
	return Options{MaxZoom: 14, Padding: 80, Duration: time.Second}
}

// Controller keeps routable waypoints on screen. It refits only when the
// number of qualifying points changes so drags and edits leave the view alone.
type Controller struct {
	mover Mover
	opts  Options
	log   *logrus.Entry

	mu        sync.Mutex
	lastCount int
}

func NewController(mover Mover, opts Options, logger *logrus.Logger) *Controller {
	return &Controller{
		mover: mover,
		opts:  opts,
		log:   logger.WithField("component", "camera"),
	}
}

// Update refits the view if the number of coordinates differs from the last call.
// Returns whether a fit was issued.
func (c *Controller) Update(coords []models.Coordinates) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(coords) == c.lastCount {
		return false
	}
	c.lastCount = len(coords)
	if len(coords) == 0 {
		return false
	}
	return c.fitLocked(coords)
}

// Fit unconditionally frames coords
func (c *Controller) Fit(coords []models.Coordinates) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCount = len(coords)
	if len(coords) == 0 {
		return false
	}
	return c.fitLocked(coords)
}

func (c *Controller) fitLocked(coords []models.Coordinates) bool {
	mp := make(orb.MultiPoint, len(coords))
	for i, co := range coords {
		mp[i] = co.Point()
	}
	bound := mp.Bound()

	err := c.mover.FitBounds(bound, mapsurface.FitOptions{
		Padding:  c.opts.Padding,
		MaxZoom:  c.opts.MaxZoom,
		Duration: c.opts.Duration,
	})
	if err != nil {
		c.log.WithError(err).Warn("[CAMERA] Fit failed")
		return false
	}
	c.log.WithField("points", len(coords)).Debug("[CAMERA] Fitted bounds")
	return true
}

// Recenter flies to a located position on load
func (c *Controller) Recenter(at models.Coordinates) error {
	return c.fly(at, ZoomRecenter)
}

// Focus flies to a waypoint picked from the list
func (c *Controller) Focus(at models.Coordinates) error {
	return c.fly(at, ZoomFocus)
}

// FlyToResult flies to a search result the user selected
func (c *Controller) FlyToResult(at models.Coordinates) error {
	return c.fly(at, ZoomResult)
}

func (c *Controller) fly(at models.Coordinates, zoom float64) error {
	if err := c.mover.FlyTo(at, zoom, c.opts.Duration); err != nil {
		c.log.WithError(err).WithField("zoom", zoom).Warn("[CAMERA] Fly failed")
		return err
	}
	return nil
}
