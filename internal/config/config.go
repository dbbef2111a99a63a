package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"iter-viae/internal/database"
	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
	"iter-viae/internal/search"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Routing     RoutingConfig
	Geocoding   GeocodingConfig
	Search      SearchConfig
	Camera      CameraConfig
	Cache       CacheConfig
	Geolocation GeolocationConfig
	Map         MapConfig
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type RoutingConfig struct {
	OSRMBaseURL    string
	Profile        string
	MaxCoordinates int
	Debounce       time.Duration
}

type GeocodingConfig struct {
	Provider       string // nominatim or geoapify
	NominatimURL   string
	GeoapifyAPIKey string
}

type SearchConfig struct {
	Debounce  time.Duration
	MinLength int
	Limit     int
}

type CameraConfig struct {
	MaxZoom  float64
	Padding  float64
	Duration time.Duration
}

type CacheConfig struct {
	Backend   string // file, sqlite or memory
	DataDir   string
	RouteSize int
}

type GeolocationConfig struct {
	Mode          string // none, static or geoclue
	DefaultCenter models.Coordinates
	DesktopID     string
}

type MapConfig struct {
	Style string
}

// Load reads an optional .env file, then the environment. Every malformed
// value is reported, not just the first.
func Load(envFiles ...string) (*Config, error) {
	// Missing .env files are fine; the environment alone is enough.
	_ = godotenv.Load(envFiles...)

	p := &parser{}
	cfg := &Config{
		Server: ServerConfig{Addr: p.str("SERVER_ADDR", "127.0.0.1:8080")},
		Log: LogConfig{
			Level:  p.str("LOG_LEVEL", "info"),
			Format: p.str("LOG_FORMAT", "text"),
		},
		Routing: RoutingConfig{
			OSRMBaseURL:    p.str("OSRM_BASE_URL", "https://router.project-osrm.org"),
			Profile:        p.str("OSRM_PROFILE", "driving"),
			MaxCoordinates: p.int("ROUTE_MAX_COORDINATES", 25),
			Debounce:       p.duration("ROUTE_DEBOUNCE", 300*time.Millisecond),
		},
		Geocoding: GeocodingConfig{
			Provider:       p.str("GEOCODER", "nominatim"),
			NominatimURL:   p.str("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
			GeoapifyAPIKey: p.str("GEOAPIFY_API_KEY", ""),
		},
		Search: SearchConfig{
			Debounce:  p.duration("SEARCH_DEBOUNCE", search.DefaultQuiet),
			MinLength: p.int("SEARCH_MIN_LENGTH", search.DefaultMinLength),
			Limit:     p.int("SEARCH_LIMIT", search.DefaultLimit),
		},
		Camera: CameraConfig{
			MaxZoom:  p.float("CAMERA_MAX_ZOOM", 14),
			Padding:  p.float("CAMERA_PADDING", 80),
			Duration: p.duration("CAMERA_DURATION", time.Second),
		},
		Cache: CacheConfig{
			Backend:   p.str("CACHE_BACKEND", "file"),
			DataDir:   p.str("DATA_DIR", ""),
			RouteSize: p.int("ROUTE_CACHE_SIZE", database.DefaultRouteCacheSize),
		},
		Geolocation: GeolocationConfig{
			Mode:          p.str("GEOLOCATION", "none"),
			DefaultCenter: p.coord("DEFAULT_CENTER", models.Coordinates{Lat: 39.8283, Lng: -98.5795}),
			DesktopID:     p.str("GEOCLUE_DESKTOP_ID", "iter-viae"),
		},
		Map: MapConfig{Style: p.str("MAP_STYLE", mapsurface.DefaultStyleID)},
	}

	if cfg.Cache.DataDir == "" && cfg.Cache.Backend != "memory" {
		dir, err := database.DefaultDataDir()
		if err != nil {
			p.fail("DATA_DIR", "not set and no home directory: "+err.Error())
		}
		cfg.Cache.DataDir = dir
	}

	if err := errors.Join(append(p.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate re-checks an already-constructed Config.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, msg string) { errs = append(errs, &ConfigError{Field: field, Message: msg}) }

	if c.Server.Addr == "" {
		bad("SERVER_ADDR", "cannot be empty")
	}
	if !oneOf(c.Log.Format, "text", "json") {
		bad("LOG_FORMAT", "must be text or json")
	}
	if c.Routing.MaxCoordinates < 2 {
		bad("ROUTE_MAX_COORDINATES", "must be at least 2")
	}
	if c.Routing.Debounce < 0 {
		bad("ROUTE_DEBOUNCE", "must not be negative")
	}
	switch c.Geocoding.Provider {
	case "nominatim":
	case "geoapify":
		if c.Geocoding.GeoapifyAPIKey == "" {
			bad("GEOAPIFY_API_KEY", "required when GEOCODER=geoapify")
		}
	default:
		bad("GEOCODER", "must be nominatim or geoapify")
	}
	if c.Search.MinLength < 1 {
		bad("SEARCH_MIN_LENGTH", "must be at least 1")
	}
	if c.Search.Limit < 1 {
		bad("SEARCH_LIMIT", "must be at least 1")
	}
	if c.Camera.MaxZoom <= 0 || c.Camera.MaxZoom > 22 {
		bad("CAMERA_MAX_ZOOM", "must be in (0, 22]")
	}
	if c.Camera.Padding < 0 {
		bad("CAMERA_PADDING", "must not be negative")
	}
	if !oneOf(c.Cache.Backend, "file", "sqlite", "memory") {
		bad("CACHE_BACKEND", "must be file, sqlite or memory")
	}
	if c.Cache.RouteSize < 1 {
		bad("ROUTE_CACHE_SIZE", "must be at least 1")
	}
	if !oneOf(c.Geolocation.Mode, "none", "static", "geoclue") {
		bad("GEOLOCATION", "must be none, static or geoclue")
	}
	if !c.Geolocation.DefaultCenter.Valid() {
		bad("DEFAULT_CENTER", "out of range")
	}
	if _, err := mapsurface.LookupStyle(c.Map.Style); err != nil {
		bad("MAP_STYLE", err.Error())
	}
	return errors.Join(errs...)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

type parser struct {
	errs []error
}

func (p *parser) fail(field, msg string) {
	p.errs = append(p.errs, &ConfigError{Field: field, Message: msg})
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, "must be a valid integer")
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, "must be a number")
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, "must be a duration such as 300ms")
		return def
	}
	return d
}

func (p *parser) coord(key string, def models.Coordinates) models.Coordinates {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	c, ok := search.ParseCoordinate(v)
	if !ok {
		p.fail(key, `must look like "lat, lng"`)
		return def
	}
	return c
}
