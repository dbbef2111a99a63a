package geocoding

import (
	"context"
	"fmt"

	"iter-viae/internal/models"
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
	PlaceID     string
}

// Suggestion converts the result into an autocomplete entry
func (r GeocodingResult) Suggestion() models.Suggestion {
	return models.Suggestion{Label: r.DisplayName, Coords: r.Coords, PlaceID: r.PlaceID}
}

// Suggester returns ranked place suggestions for search-box text
type Suggester interface {
	Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error)
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Suggester
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

func toSuggestions(results []GeocodingResult) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(results))
	for _, r := range results {
		out = append(out, r.Suggestion())
	}
	return out
}
