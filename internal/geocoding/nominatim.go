package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "IterViae/1.0"
)

// NominatimConfig configures the Nominatim client. Interval is the minimum
// spacing between requests (the public instance allows one per second).
type NominatimConfig struct {
	BaseURL      string
	UserAgent    string
	Interval     time.Duration
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

type nominatimGeocoder struct {
	baseURL      string
	userAgent    string
	retryBackoff time.Duration
	httpClient   *http.Client
	rateLimiter  *time.Ticker
	log          *logrus.Entry
}

type nominatimResponse struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a new Nominatim geocoder with rate limiting
func NewNominatimGeocoder(cfg NominatimConfig, logger *logrus.Logger) Geocoder {
	return newNominatim(cfg, logger)
}

func newNominatim(cfg NominatimConfig, logger *logrus.Logger) *nominatimGeocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &nominatimGeocoder{
		baseURL:      cfg.BaseURL,
		userAgent:    cfg.UserAgent,
		retryBackoff: cfg.RetryBackoff,
		httpClient:   cfg.HTTPClient,
		rateLimiter:  time.NewTicker(cfg.Interval),
		log:          logger.WithField("component", "nominatim"),
	}
}

func (g *nominatimGeocoder) query(ctx context.Context, text string, limit int) ([]nominatimResponse, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(text), limit)
	entry := g.log.WithFields(logrus.Fields{"query": text, "limit": limit})
	entry.WithField("url", queryURL).Debug("[GEOCODING] Request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		entry.WithError(err).Error("[GEOCODING] API request failed")
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		entry.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(body)}).Error("[GEOCODING] API error")
		return nil, &ErrGeocodingFailed{
			Address: text,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		entry.WithError(err).Error("[GEOCODING] Failed to decode response")
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	entry.WithField("results_count", len(results)).Debug("[GEOCODING] Response")
	return results, nil
}

func (r nominatimResponse) toResult() (GeocodingResult, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return GeocodingResult{}, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return GeocodingResult{}, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	res := GeocodingResult{Coords: models.Coordinates{Lat: lat, Lng: lng}, DisplayName: r.DisplayName}
	if r.PlaceID != 0 {
		res.PlaceID = strconv.FormatInt(r.PlaceID, 10)
	}
	return res, nil
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.query(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		g.log.WithField("query", address).Warn("[GEOCODING] No results found")
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	res, err := results[0].toResult()
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}
	g.log.WithFields(logrus.Fields{"query": address, "lat": res.Coords.Lat, "lng": res.Coords.Lng}).Info("[GEOCODING] Geocoded")
	return &res, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			backoff := g.retryBackoff << uint(i)
			g.log.WithFields(logrus.Fields{"query": address, "attempt": i + 1, "backoff": backoff}).WithError(err).Warn("[GEOCODING] Retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	g.log.WithField("query", address).WithError(lastErr).Error("[GEOCODING] Giving up")
	return nil, lastErr
}

// Search returns up to limit matches; entries with unparseable coordinates are skipped
func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	results, err := g.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]GeocodingResult, 0, len(results))
	for _, r := range results {
		res, err := r.toResult()
		if err != nil {
			g.log.WithField("query", query).WithError(err).Warn("[GEOCODING] Skipping result")
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (g *nominatimGeocoder) Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	results, err := g.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	return toSuggestions(results), nil
}
