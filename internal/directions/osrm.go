package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"iter-viae/internal/models"
)

// DefaultMaxCoordinates is the per-request vertex cap
const DefaultMaxCoordinates = 25

// Router computes road geometry through an ordered point sequence
type Router interface {
	Route(ctx context.Context, points []Point) (*models.RouteGeometry, error)
}

// ErrRouteFailed is returned when the routing service fails or answers with garbage
type ErrRouteFailed struct {
	Reason     string
	StatusCode int
}

func (e *ErrRouteFailed) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("route request failed (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("route request failed: %s", e.Reason)
}

// OSRMConfig configures the OSRM route client
type OSRMConfig struct {
	BaseURL        string
	Profile        string
	MaxCoordinates int
	ChunkCacheSize int
	HTTPClient     *http.Client
}

type osrmRouter struct {
	baseURL    string
	profile    string
	maxCoords  int
	httpClient *http.Client
	chunks     *lru.Cache[string, *models.RouteGeometry]
	log        *logrus.Entry
}

type osrmRouteResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry *geojson.Geometry `json:"geometry"`
		Legs     []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

// NewOSRMRouter creates an OSRM route client that splits long sequences into
// concurrent chunk requests and keeps recent chunk responses in an LRU.
func NewOSRMRouter(cfg OSRMConfig, logger *logrus.Logger) (Router, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.project-osrm.org"
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	if cfg.MaxCoordinates < 2 {
		cfg.MaxCoordinates = DefaultMaxCoordinates
	}
	if cfg.ChunkCacheSize <= 0 {
		cfg.ChunkCacheSize = 128
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	chunks, err := lru.New[string, *models.RouteGeometry](cfg.ChunkCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	return &osrmRouter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		profile:    cfg.Profile,
		maxCoords:  cfg.MaxCoordinates,
		httpClient: cfg.HTTPClient,
		chunks:     chunks,
		log:        logger.WithField("component", "osrm"),
	}, nil
}

func (r *osrmRouter) Route(ctx context.Context, points []Point) (*models.RouteGeometry, error) {
	if len(points) < 2 {
		return nil, &ErrRouteFailed{Reason: "need at least two points"}
	}

	spans := ChunkRanges(len(points), r.maxCoords)
	parts := make([]*models.RouteGeometry, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	for i, span := range spans {
		chunk := points[span.Start : span.End+1]
		g.Go(func() error {
			part, err := r.routeChunk(gctx, chunk)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	route := Stitch(parts)
	route.Key = SequenceKey(points)

	if len(spans) > 1 {
		r.log.WithFields(logrus.Fields{"points": len(points), "chunks": len(spans)}).Info("[OSRM] Stitched chunked route")
	}
	return route, nil
}

// routeChunk fetches one chunk. Every point is sent as a waypoint, so the
// response carries one leg per gap.
func (r *osrmRouter) routeChunk(ctx context.Context, chunk []Point) (*models.RouteGeometry, error) {
	key := r.profile + ":" + SequenceKey(chunk)
	if cached, ok := r.chunks.Get(key); ok {
		return cached, nil
	}

	coords := make([]string, len(chunk))
	for i, p := range chunk {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Coord.Lng, p.Coord.Lat)
	}

	queryURL := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&steps=false",
		r.baseURL, r.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrRouteFailed{Reason: err.Error()}
	}

	r.log.WithField("points", len(chunk)).Debug("[OSRM] Route request")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.WithError(err).WithField("points", len(chunk)).Error("[OSRM] Route request failed")
		return nil, &ErrRouteFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(body)}).Error("[OSRM] Route API error")
		return nil, &ErrRouteFailed{Reason: string(body), StatusCode: resp.StatusCode}
	}

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, &ErrRouteFailed{Reason: fmt.Sprintf("malformed response: %v", err)}
	}
	if osrmResp.Code != "Ok" {
		return nil, &ErrRouteFailed{Reason: fmt.Sprintf("OSRM error: %s %s", osrmResp.Code, osrmResp.Message)}
	}
	if len(osrmResp.Routes) == 0 || osrmResp.Routes[0].Geometry == nil {
		return nil, &ErrRouteFailed{Reason: "response has no route"}
	}

	best := osrmResp.Routes[0]
	line, ok := best.Geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, &ErrRouteFailed{Reason: fmt.Sprintf("unexpected geometry type %q", best.Geometry.Type)}
	}
	if len(best.Legs) != len(chunk)-1 {
		return nil, &ErrRouteFailed{Reason: fmt.Sprintf("expected %d legs, got %d", len(chunk)-1, len(best.Legs))}
	}

	part := &models.RouteGeometry{Line: line, Legs: make([]models.Leg, len(best.Legs))}
	for i, l := range best.Legs {
		part.Legs[i] = models.Leg{DurationSecs: l.Duration, DistanceMeters: l.Distance}
	}

	r.chunks.Add(key, part)
	return part, nil
}
