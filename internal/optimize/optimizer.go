package optimize

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/distance"
	"iter-viae/internal/models"
)

// Metric selects which matrix annotation is minimized
type Metric string

const (
	MetricDuration Metric = "duration"
	MetricDistance Metric = "distance"
)

// Optimizer orders stops to minimize total travel, keeping the first stop in
// place and optionally the last.
type Optimizer struct {
	calc   distance.DistanceCalculator
	metric Metric
	log    *logrus.Entry
}

func New(calc distance.DistanceCalculator, metric Metric, logger *logrus.Logger) *Optimizer {
	if metric != MetricDistance {
		metric = MetricDuration
	}
	return &Optimizer{calc: calc, metric: metric, log: logger.WithField("component", "optimize")}
}

// Order returns a permutation of indices into points. points[0] stays first;
// with keepEnd the last point stays last.
func (o *Optimizer) Order(ctx context.Context, points []models.Coordinates, keepEnd bool) ([]int, error) {
	n := len(points)
	fixed := 1
	if keepEnd {
		fixed = 2
	}
	if n <= fixed+1 {
		return lo.Range(n), nil
	}

	start := time.Now()
	matrix, err := o.calc.GetDistanceMatrix(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}
	if len(matrix) != n {
		return nil, fmt.Errorf("distance matrix has %d rows for %d points", len(matrix), n)
	}
	cost := func(i, j int) float64 {
		if o.metric == MetricDistance {
			return matrix[i][j].DistanceMeters
		}
		return matrix[i][j].DurationSecs
	}

	before := routeCost(lo.Range(n), cost)
	route := cheapestInsertion(n, keepEnd, cost)
	route = twoOpt(route, keepEnd, cost)
	after := routeCost(route, cost)

	o.log.WithFields(logrus.Fields{
		"points":  n,
		"metric":  o.metric,
		"before":  math.Round(before),
		"after":   math.Round(after),
		"elapsed": time.Since(start),
	}).Info("[OPTIMIZE] Stop order optimized")
	return route, nil
}

func routeCost(route []int, cost func(i, j int) float64) float64 {
	var total float64
	for k := 0; k+1 < len(route); k++ {
		total += cost(route[k], route[k+1])
	}
	return total
}

// cheapestInsertion repeatedly inserts the unplaced stop whose best position adds the least cost
func cheapestInsertion(n int, keepEnd bool, cost func(i, j int) float64) []int {
	route := []int{0}
	free := lo.Range(n)[1:]
	if keepEnd {
		route = append(route, n-1)
		free = free[:len(free)-1]
	}

	for len(free) > 0 {
		best := math.Inf(1)
		bestStop, bestPos := -1, -1
		for _, p := range free {
			for pos := 1; pos <= len(route); pos++ {
				if keepEnd && pos == len(route) {
					continue
				}
				prev := route[pos-1]
				var delta float64
				if pos < len(route) {
					next := route[pos]
					delta = cost(prev, p) + cost(p, next) - cost(prev, next)
				} else {
					delta = cost(prev, p)
				}
				if delta < best {
					best, bestStop, bestPos = delta, p, pos
				}
			}
		}
		route = append(route[:bestPos], append([]int{bestStop}, route[bestPos:]...)...)
		free = lo.Without(free, bestStop)
	}
	return route
}

// twoOpt reverses interior segments while that lowers the total. Costs are
// directional, so each candidate is priced as a whole route.
func twoOpt(route []int, keepEnd bool, cost func(i, j int) float64) []int {
	last := len(route) - 1
	if keepEnd {
		last--
	}
	current := routeCost(route, cost)
	for improved := true; improved; {
		improved = false
		for i := 1; i < last; i++ {
			for j := i + 1; j <= last; j++ {
				candidate := append([]int(nil), route...)
				lo.Reverse(candidate[i : j+1])
				if c := routeCost(candidate, cost); c < current-1e-9 {
					route, current, improved = candidate, c, true
				}
			}
		}
	}
	return route
}
