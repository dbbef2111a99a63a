package directions

import (
	"github.com/paulmach/orb"

	"iter-viae/internal/models"
)

// Span is an inclusive index range into a point sequence
type Span struct {
	Start int
	End   int
}

// Len is the number of points in the span
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// ChunkRanges splits n points into spans of at most maxPoints. Consecutive
// spans share their seam point so legs stay continuous.
func ChunkRanges(n, maxPoints int) []Span {
	if n < 2 {
		return nil
	}
	if maxPoints < 2 {
		maxPoints = 2
	}

	var spans []Span
	start := 0
	for {
		end := min(start+maxPoints-1, n-1)
		spans = append(spans, Span{Start: start, End: end})
		if end == n-1 {
			return spans
		}
		start = end
	}
}

// Stitch joins chunk routes in order. The first coordinate of every chunk after
// the first duplicates the previous chunk's seam and is dropped. Every point is a
// leg boundary, so legs simply concatenate.
func Stitch(parts []*models.RouteGeometry) *models.RouteGeometry {
	out := &models.RouteGeometry{}
	for i, p := range parts {
		if i > 0 && len(p.Line) > 0 {
			out.Line = append(out.Line, p.Line[1:]...)
		} else {
			out.Line = append(out.Line, p.Line...)
		}
		out.Legs = append(out.Legs, p.Legs...)
	}
	if out.Line == nil {
		out.Line = orb.LineString{}
	}
	return out
}
