package search

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"iter-viae/internal/models"
)

var coordPattern = regexp.MustCompile(`^[-+]?\d+(\.\d+)?,\s*[-+]?\d+(\.\d+)?$`)

// ParseCoordinate recognizes a literal "lat, lng" pair. When the first number
// cannot be a latitude but the second can, the pair is read as "lng, lat".
func ParseCoordinate(text string) (models.Coordinates, bool) {
	text = strings.TrimSpace(text)
	if !coordPattern.MatchString(text) {
		return models.Coordinates{}, false
	}

	first, second, _ := strings.Cut(text, ",")
	a, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return models.Coordinates{}, false
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if err != nil {
		return models.Coordinates{}, false
	}

	c := models.Coordinates{Lat: a, Lng: b}
	if math.Abs(a) > 90 && math.Abs(b) <= 90 {
		c = models.Coordinates{Lat: b, Lng: a}
	}
	if !c.Valid() {
		return models.Coordinates{}, false
	}
	return c, true
}
