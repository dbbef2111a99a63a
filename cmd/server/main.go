package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/camera"
	"iter-viae/internal/config"
	"iter-viae/internal/database"
	"iter-viae/internal/directions"
	"iter-viae/internal/distance"
	"iter-viae/internal/geocoding"
	"iter-viae/internal/geolocation"
	"iter-viae/internal/handlers"
	"iter-viae/internal/logging"
	"iter-viae/internal/mapsurface"
	"iter-viae/internal/optimize"
	"iter-viae/internal/planner"
	"iter-viae/internal/search"
	"iter-viae/internal/server"
	"iter-viae/internal/sqlite"
	"iter-viae/internal/waypoints"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	cache, err := openCache(cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cache.Close()

	router, err := directions.NewOSRMRouter(directions.OSRMConfig{
		BaseURL:        cfg.Routing.OSRMBaseURL,
		Profile:        cfg.Routing.Profile,
		MaxCoordinates: cfg.Routing.MaxCoordinates,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	route := directions.NewService(router, cache.RouteCache(), directions.ServiceConfig{
		Debounce:       cfg.Routing.Debounce,
		CacheNamespace: cfg.Routing.Profile + "@" + cfg.Routing.OSRMBaseURL,
	}, logger)
	defer route.Close()

	calc := distance.NewOSRMCalculator(distance.OSRMConfig{
		BaseURL: cfg.Routing.OSRMBaseURL,
		Profile: cfg.Routing.Profile,
	}, cache.DistanceCache(), logger)

	suggester, err := newSuggester(cfg.Geocoding, logger)
	if err != nil {
		return fmt.Errorf("failed to create geocoder: %w", err)
	}

	style, err := mapsurface.LookupStyle(cfg.Map.Style)
	if err != nil {
		return err
	}
	surface := mapsurface.NewMemorySurface(style)

	p := planner.New(planner.Deps{
		Store:   waypoints.NewStore(nil),
		Surface: surface,
		Route:   route,
		Camera: camera.Options{
			MaxZoom:  cfg.Camera.MaxZoom,
			Padding:  cfg.Camera.Padding,
			Duration: cfg.Camera.Duration,
		},
		Suggester: suggester,
		Search: search.Config{
			Quiet:     cfg.Search.Debounce,
			MinLength: cfg.Search.MinLength,
			Limit:     cfg.Search.Limit,
		},
		Optimizer: optimize.New(calc, optimize.MetricDuration, logger),
		Locator:   newLocator(cfg.Geolocation, logger),
		Center:    cfg.Geolocation.DefaultCenter,
	}, logger)
	defer p.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	p.Start(startCtx)
	cancelStart()

	srv := server.New(server.Config{Addr: cfg.Server.Addr},
		handlers.New(p, surface, suggester, cache, logger), logger)

	if _, err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	logger.WithField("signal", sig.String()).Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func openCache(cfg config.CacheConfig, logger *logrus.Logger) (database.CacheStore, error) {
	switch cfg.Backend {
	case "memory":
		return database.NewMemoryStore(cfg.RouteSize)
	case "sqlite":
		path, err := database.SQLitePath(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return sqlite.New(path, cfg.RouteSize, logger)
	default:
		return database.NewFileStore(cfg.DataDir, cfg.RouteSize, logger)
	}
}

func newSuggester(cfg config.GeocodingConfig, logger *logrus.Logger) (geocoding.Suggester, error) {
	if cfg.Provider == "geoapify" {
		return geocoding.NewGeoapifySuggester(geocoding.GeoapifyConfig{APIKey: cfg.GeoapifyAPIKey}, logger)
	}
	return geocoding.NewNominatimGeocoder(geocoding.NominatimConfig{BaseURL: cfg.NominatimURL}, logger), nil
}

func newLocator(cfg config.GeolocationConfig, logger *logrus.Logger) geolocation.Locator {
	switch cfg.Mode {
	case "static":
		return geolocation.StaticLocator{Coord: cfg.DefaultCenter}
	case "geoclue":
		return geolocation.NewGeoClueLocator(cfg.DesktopID, logger)
	default:
		return geolocation.NoLocator{}
	}
}
