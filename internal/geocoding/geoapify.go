package geocoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

const DefaultGeoapifyURL = "https://api.geoapify.com"

// GeoapifyConfig configures the Geoapify autocomplete client
type GeoapifyConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// GeoapifySuggester queries the Geoapify autocomplete endpoint, which answers
// with a GeoJSON feature collection.
type GeoapifySuggester struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Entry
}

func NewGeoapifySuggester(cfg GeoapifyConfig, logger *logrus.Logger) (*GeoapifySuggester, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("geoapify: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeoapifyURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GeoapifySuggester{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		log:        logger.WithField("component", "geoapify"),
	}, nil
}

func (g *GeoapifySuggester) Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("apiKey", g.apiKey)
	params.Set("limit", fmt.Sprint(limit))
	queryURL := g.baseURL + "/v1/geocode/autocomplete?" + params.Encode()

	entry := g.log.WithFields(logrus.Fields{"query": text, "limit": limit})
	entry.Debug("[GEOCODING] Autocomplete request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		entry.WithField("status", resp.StatusCode).Error("[GEOCODING] Autocomplete API error")
		return nil, &ErrGeocodingFailed{Address: text, Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		entry.WithError(err).Error("[GEOCODING] Failed to decode autocomplete response")
		return nil, &ErrGeocodingFailed{Address: text, Reason: err.Error()}
	}

	out := make([]models.Suggestion, 0, len(fc.Features))
	for _, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		label := f.Properties.MustString("formatted", "")
		if label == "" {
			label = f.Properties.MustString("name", "")
		}
		out = append(out, models.Suggestion{
			Label:   label,
			Coords:  models.FromPoint(p),
			PlaceID: f.Properties.MustString("place_id", ""),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	entry.WithField("results_count", len(out)).Debug("[GEOCODING] Autocomplete response")
	return out, nil
}
