package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"iter-viae/internal/database"
	"iter-viae/internal/models"
)

// DistanceResult contains the result of a distance calculation
type DistanceResult struct {
	DistanceMeters float64
	DurationSecs   float64
}

// DistanceCalculator provides distance calculations between coordinates
type DistanceCalculator interface {
	GetDistance(ctx context.Context, origin, dest models.Coordinates) (*DistanceResult, error)
	GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error)
	GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]DistanceResult, error)
	PrewarmCache(ctx context.Context, points []models.Coordinates) error
}

// ErrDistanceCalculationFailed is returned when OSRM API fails
type ErrDistanceCalculationFailed struct {
	Origin models.Coordinates
	Dest   models.Coordinates
	Reason string
}

func (e *ErrDistanceCalculationFailed) Error() string {
	return fmt.Sprintf("distance calculation failed: %s", e.Reason)
}

const (
	// DefaultMaxTableCoordinates is the largest table the public OSRM instance accepts
	DefaultMaxTableCoordinates = 80
	defaultBatchConcurrency    = 2
)

// OSRMConfig configures the table client
type OSRMConfig struct {
	BaseURL        string
	Profile        string
	MaxCoordinates int
	HTTPClient     *http.Client
}

type osrmCalculator struct {
	baseURL    string
	profile    string
	maxCoords  int
	httpClient *http.Client
	cache      database.DistanceCacheRepository
	log        *logrus.Entry
}

type osrmTableResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message,omitempty"`
	Distances [][]float64 `json:"distances"`
	Durations [][]float64 `json:"durations"`
}

// NewOSRMCalculator creates a new OSRM distance calculator with caching
func NewOSRMCalculator(cfg OSRMConfig, cache database.DistanceCacheRepository, logger *logrus.Logger) DistanceCalculator {
	return newCalculator(cfg, cache, logger)
}

func newCalculator(cfg OSRMConfig, cache database.DistanceCacheRepository, logger *logrus.Logger) *osrmCalculator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.project-osrm.org"
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	if cfg.MaxCoordinates < 2 {
		cfg.MaxCoordinates = DefaultMaxTableCoordinates
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &osrmCalculator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		profile:    cfg.Profile,
		maxCoords:  cfg.MaxCoordinates,
		httpClient: cfg.HTTPClient,
		cache:      cache,
		log:        logger.WithField("component", "distance"),
	}
}

func samePoint(a, b models.Coordinates) bool {
	return models.RoundCoordinate(a.Lat) == models.RoundCoordinate(b.Lat) &&
		models.RoundCoordinate(a.Lng) == models.RoundCoordinate(b.Lng)
}

func (c *osrmCalculator) GetDistance(ctx context.Context, origin, dest models.Coordinates) (*DistanceResult, error) {
	if samePoint(origin, dest) {
		return &DistanceResult{}, nil
	}

	cached, err := c.cache.Get(ctx, origin, dest)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return &DistanceResult{DistanceMeters: cached.DistanceMeters, DurationSecs: cached.DurationSecs}, nil
	}

	results, err := c.GetDistancesFromPoint(ctx, origin, []models.Coordinates{dest})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: "no results returned"}
	}
	return &results[0], nil
}

// GetDistanceMatrix fills an n×n matrix from the cache and fetches whatever is
// missing, splitting into concurrent source/destination batches when n exceeds
// the per-request coordinate cap.
func (c *osrmCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error) {
	n := len(points)
	if n == 0 {
		return [][]DistanceResult{}, nil
	}

	matrix := make([][]DistanceResult, n)
	for i := range matrix {
		matrix[i] = make([]DistanceResult, n)
	}

	missing := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			cached, err := c.cache.Get(ctx, points[i], points[j])
			if err != nil {
				return nil, err
			}
			if cached != nil {
				matrix[i][j] = DistanceResult{DistanceMeters: cached.DistanceMeters, DurationSecs: cached.DurationSecs}
			} else {
				missing++
			}
		}
	}

	entry := c.log.WithFields(logrus.Fields{"points": n, "missing": missing})
	if missing == 0 {
		entry.Debug("[OSRM] Distance matrix all cached")
		return matrix, nil
	}
	entry.Info("[OSRM] Distance matrix request")

	batches := indexBatches(n, c.maxCoords/2)
	if n <= c.maxCoords {
		batches = [][]int{allIndices(n)}
	}

	var (
		mu      sync.Mutex
		entries []models.DistanceCacheEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultBatchConcurrency)
	for _, src := range batches {
		for _, dst := range batches {
			g.Go(func() error {
				got, err := c.fetchBlock(gctx, points, src, dst)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for si, i := range src {
					for di, j := range dst {
						if i == j || got[si][di].DistanceMeters <= 0 {
							continue
						}
						matrix[i][j] = got[si][di]
						entries = append(entries, models.DistanceCacheEntry{
							Origin:         points[i],
							Destination:    points[j],
							DistanceMeters: got[si][di].DistanceMeters,
							DurationSecs:   got[si][di].DurationSecs,
						})
					}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry.WithFields(logrus.Fields{"requests": len(batches) * len(batches), "entries": len(entries)}).Info("[OSRM] Distance matrix complete")
	if len(entries) > 0 {
		if err := c.cache.SetBatch(ctx, entries); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// indexBatches splits 0..n-1 into runs of at most size so any pair of runs fits one request
func indexBatches(n, size int) [][]int {
	if size < 1 {
		size = 1
	}
	var out [][]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, i)
		}
		out = append(out, batch)
	}
	return out
}

// fetchBlock requests the src×dst block of the matrix in one table call
func (c *osrmCalculator) fetchBlock(ctx context.Context, points []models.Coordinates, src, dst []int) ([][]DistanceResult, error) {
	local := make(map[int]int, len(src)+len(dst))
	var coords []string
	add := func(idx int) {
		if _, ok := local[idx]; ok {
			return
		}
		local[idx] = len(coords)
		coords = append(coords, fmt.Sprintf("%.6f,%.6f", points[idx].Lng, points[idx].Lat))
	}
	for _, i := range src {
		add(i)
	}
	for _, j := range dst {
		add(j)
	}

	queryURL := fmt.Sprintf("%s/table/v1/%s/%s?annotations=distance,duration", c.baseURL, c.profile, strings.Join(coords, ";"))
	whole := len(coords) == len(src) && len(coords) == len(dst)
	if !whole {
		queryURL += "&sources=" + joinLocal(src, local) + "&destinations=" + joinLocal(dst, local)
	}

	resp, err := c.table(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	if len(resp.Distances) != len(src) || len(resp.Durations) != len(src) {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("expected %d rows, got %d", len(src), len(resp.Distances))}
	}

	out := make([][]DistanceResult, len(src))
	for si := range src {
		if len(resp.Distances[si]) != len(dst) || len(resp.Durations[si]) != len(dst) {
			return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("row %d has wrong width", si)}
		}
		out[si] = make([]DistanceResult, len(dst))
		for di := range dst {
			out[si][di] = DistanceResult{DistanceMeters: resp.Distances[si][di], DurationSecs: resp.Durations[si][di]}
		}
	}
	return out, nil
}

func joinLocal(indices []int, local map[int]int) string {
	parts := make([]string, len(indices))
	for k, idx := range indices {
		parts[k] = strconv.Itoa(local[idx])
	}
	return strings.Join(parts, ";")
}

func (c *osrmCalculator) table(ctx context.Context, queryURL string) (*osrmTableResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Error("[OSRM] Table request failed")
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(body)}).Error("[OSRM] Table API error")
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var out osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	if out.Code != "Ok" {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM error: %s %s", out.Code, out.Message)}
	}
	return &out, nil
}

func (c *osrmCalculator) GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]DistanceResult, error) {
	if len(destinations) == 0 {
		return []DistanceResult{}, nil
	}

	all := append([]models.Coordinates{origin}, destinations...)
	matrix, err := c.GetDistanceMatrix(ctx, all)
	if err != nil {
		return nil, err
	}

	results := make([]DistanceResult, len(destinations))
	for i := range destinations {
		results[i] = matrix[0][i+1]
	}
	return results, nil
}

func (c *osrmCalculator) PrewarmCache(ctx context.Context, points []models.Coordinates) error {
	_, err := c.GetDistanceMatrix(ctx, points)
	return err
}
