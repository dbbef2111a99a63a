package directions

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mmcloughlin/geohash"

	"iter-viae/internal/models"
)

// keyPrecision is the geohash length per coordinate (~3.7cm cells)
const keyPrecision = 12

// Point is one vertex of a routing request
type Point struct {
	Coord models.Coordinates
}

// PointsFrom returns the effective routing sequence: routable waypoints in
// collection order. Every point is sent to the router, shaping or not.
func PointsFrom(list []models.Waypoint) []Point {
	points := make([]Point, 0, len(list))
	for _, w := range list {
		if !w.Routable() {
			continue
		}
		points = append(points, Point{Coord: *w.Coord})
	}
	return points
}

// SequenceKey identifies an effective coordinate sequence. Names, durations and
// categories do not affect it.
func SequenceKey(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(geohash.EncodeWithPrecision(p.Coord.Lat, p.Coord.Lng, keyPrecision))
	}
	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("%016x", h.Sum64())
}

// StopLegs folds per-point legs into stop-to-stop legs. ids names the routed
// points in order (legs[k] runs from ids[k] to ids[k+1]); list supplies the
// current categories, so a shaping point's two legs merge into one. The first
// and last points always bound a leg. Ids missing from list count as stops.
func StopLegs(ids []string, legs []models.Leg, list []models.Waypoint) (starts []string, merged []models.Leg) {
	if len(ids) < 2 || len(legs) != len(ids)-1 {
		return nil, nil
	}
	shaping := make(map[string]bool, len(list))
	for _, w := range list {
		shaping[w.ID] = w.Category.IsShaping()
	}

	var acc models.Leg
	from := ids[0]
	for k, leg := range legs {
		acc.DurationSecs += leg.DurationSecs
		acc.DistanceMeters += leg.DistanceMeters
		next := ids[k+1]
		if k+1 < len(ids)-1 && shaping[next] {
			continue
		}
		starts = append(starts, from)
		merged = append(merged, acc)
		from = next
		acc = models.Leg{}
	}
	return starts, merged
}
