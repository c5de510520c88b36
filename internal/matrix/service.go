package matrix

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/platform/metrics"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Matrix holds pairwise distance and travel time over an ordered node list.
// Distances are kilometres (coordinate units in euclidean mode) and times
// are minutes.
type Matrix struct {
	IDs      []string
	Mode     Mode
	Distance [][]float64
	Time     [][]float64
	// Degraded is set when some road pairs fell back to haversine.
	Degraded      bool
	FallbackPairs int
}

func (m *Matrix) Len() int { return len(m.IDs) }

func (m *Matrix) Index(id string) (int, bool) {
	for i, v := range m.IDs {
		if v == id {
			return i, true
		}
	}
	return -1, false
}

type Options struct {
	// TimePerUnit converts analytic distance into minutes.
	TimePerUnit float64
	// FallbackSpeedKph converts haversine fallback distance into minutes.
	FallbackSpeedKph float64
	// Workers bounds concurrent provider rows.
	Workers int
}

func DefaultOptions() Options {
	return Options{TimePerUnit: 3.0, FallbackSpeedKph: 40, Workers: 5}
}

// Service computes distance/time matrices. It is safe for concurrent use.
type Service struct {
	provider ports.RouteProvider
	cache    *Cache
	opts     Options
	rows     singleflight.Group
}

// NewService wires a provider and a cache. Both may be nil when only
// analytic modes are used; a nil cache disables road caching.
func NewService(provider ports.RouteProvider, cache *Cache, opts Options) *Service {
	d := DefaultOptions()
	if opts.TimePerUnit <= 0 {
		opts.TimePerUnit = d.TimePerUnit
	}
	if opts.FallbackSpeedKph <= 0 {
		opts.FallbackSpeedKph = d.FallbackSpeedKph
	}
	if opts.Workers <= 0 {
		opts.Workers = d.Workers
	}
	return &Service{provider: provider, cache: cache, opts: opts}
}

// Compute returns the full matrix over nodes in the given order.
func (s *Service) Compute(ctx context.Context, nodes []domain.Locatable, mode Mode) (_ *Matrix, err error) {
	defer obs.Time(ctx, "matrix.Compute")(&err)

	coords, err := s.checkNodes(nodes, mode)
	if err != nil {
		return nil, err
	}

	m := newMatrix(nodes, mode)
	if err := s.fill(ctx, m, coords, func(i, j int) bool { return true }); err != nil {
		return nil, err
	}
	return m, nil
}

// Extend builds a matrix over nodes reusing every pair already present in
// base (matched by node id). Only pairs touching new nodes are computed.
func (s *Service) Extend(ctx context.Context, base *Matrix, nodes []domain.Locatable) (_ *Matrix, err error) {
	defer obs.Time(ctx, "matrix.Extend")(&err)

	if base == nil {
		return nil, errors.New("extend matrix: base matrix is nil")
	}

	coords, err := s.checkNodes(nodes, base.Mode)
	if err != nil {
		return nil, err
	}

	m := newMatrix(nodes, base.Mode)
	prev := make([]int, len(nodes))
	for i, n := range nodes {
		idx, ok := base.Index(n.NodeID())
		if !ok {
			idx = -1
		}
		prev[i] = idx
	}

	for i := range nodes {
		for j := range nodes {
			if prev[i] >= 0 && prev[j] >= 0 {
				m.Distance[i][j] = base.Distance[prev[i]][prev[j]]
				m.Time[i][j] = base.Time[prev[i]][prev[j]]
			}
		}
	}
	m.Degraded = base.Degraded

	need := func(i, j int) bool { return prev[i] < 0 || prev[j] < 0 }
	if err := s.fill(ctx, m, coords, need); err != nil {
		return nil, err
	}
	return m, nil
}

func newMatrix(nodes []domain.Locatable, mode Mode) *Matrix {
	n := len(nodes)
	m := &Matrix{
		IDs:      make([]string, n),
		Mode:     mode,
		Distance: make([][]float64, n),
		Time:     make([][]float64, n),
	}
	for i, nd := range nodes {
		m.IDs[i] = nd.NodeID()
		m.Distance[i] = make([]float64, n)
		m.Time[i] = make([]float64, n)
	}
	return m
}

// checkNodes fails before any network call when a node has no usable location.
func (s *Service) checkNodes(nodes []domain.Locatable, mode Mode) ([]domain.Coordinates, error) {
	switch mode {
	case ModeEuclidean, ModeHaversine, ModeRoad:
	default:
		return nil, &domain.DataValidationError{Entity: "matrix", Field: "mode", Reason: fmt.Sprintf("unknown distance mode %q", mode)}
	}

	seen := make(map[string]struct{}, len(nodes))
	coords := make([]domain.Coordinates, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return nil, &domain.DataValidationError{Entity: "node", Reason: fmt.Sprintf("node #%d is nil", i)}
		}
		if _, ok := seen[n.NodeID()]; ok {
			return nil, &domain.DataValidationError{Entity: n.NodeKind().String(), ID: n.NodeID(), Field: "id", Reason: "duplicate node id"}
		}
		seen[n.NodeID()] = struct{}{}

		c, ok := n.Coords()
		if !ok {
			return nil, &domain.DataValidationError{Entity: n.NodeKind().String(), ID: n.NodeID(), Field: "location", Reason: "valid coordinates are required"}
		}
		if mode != ModeEuclidean && !c.Geographic() {
			return nil, &domain.DataValidationError{Entity: n.NodeKind().String(), ID: n.NodeID(), Field: "location", Reason: "latitude/longitude out of range"}
		}
		coords[i] = c
	}

	if mode == ModeRoad && s.provider == nil {
		return nil, errors.New("road mode requires a routing provider")
	}
	return coords, nil
}

func (s *Service) fill(ctx context.Context, m *Matrix, coords []domain.Coordinates, need func(i, j int) bool) error {
	switch m.Mode {
	case ModeEuclidean:
		s.fillAnalytic(m, coords, need, Euclidean)
		return nil
	case ModeHaversine:
		s.fillAnalytic(m, coords, need, Haversine)
		return nil
	default:
		return s.fillRoad(ctx, m, coords, need)
	}
}

func (s *Service) fillAnalytic(
	m *Matrix,
	coords []domain.Coordinates,
	need func(i, j int) bool,
	dist func(a, b domain.Coordinates) float64,
) {
	// Computed once per unordered pair so both directions are bit-identical.
	for i := range coords {
		for j := i + 1; j < len(coords); j++ {
			if !need(i, j) && !need(j, i) {
				continue
			}
			d := dist(coords[i], coords[j])
			t := d * s.opts.TimePerUnit
			m.Distance[i][j], m.Distance[j][i] = d, d
			m.Time[i][j], m.Time[j][i] = t, t
		}
	}
}

type rowRequest struct {
	origin  int
	targets []int
	keys    []ports.CacheKey
}

func (s *Service) fillRoad(ctx context.Context, m *Matrix, coords []domain.Coordinates, need func(i, j int) bool) error {
	profile := s.provider.Name()

	var requests []rowRequest
	hits, misses := 0, 0
	for i := range coords {
		req := rowRequest{origin: i}
		for j := range coords {
			if i == j || !need(i, j) {
				continue
			}
			key := ports.CacheKey{Profile: profile, Origin: roundedKey(coords[i]), Destination: roundedKey(coords[j])}
			if s.cache != nil {
				if r, ok := s.cache.Get(key); ok {
					setRoad(m, i, j, r)
					hits++
					continue
				}
			}
			misses++
			req.targets = append(req.targets, j)
			req.keys = append(req.keys, key)
		}
		if len(req.targets) > 0 {
			requests = append(requests, req)
		}
	}
	metrics.MatrixLookups.WithLabelValues("hit").Add(float64(hits))
	metrics.MatrixLookups.WithLabelValues("miss").Add(float64(misses))
	obs.Debugf(ctx, "op=matrix.road provider=%s hits=%d misses=%d rows=%d", profile, hits, misses, len(requests))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, req := range requests {
		g.Go(func() error {
			results, err := s.fetchRow(gctx, coords, req)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.fallbackRow(gctx, m, coords, req, err, &mu)
				return nil
			}

			for k, j := range req.targets {
				setRoad(m, req.origin, j, results[k])
				if s.cache != nil {
					s.cache.Put(req.keys[k], results[k])
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("compute road matrix: %w", err)
	}
	return nil
}

// fetchRow coalesces identical concurrent row requests into one provider call.
func (s *Service) fetchRow(ctx context.Context, coords []domain.Coordinates, req rowRequest) ([]ports.DistanceResult, error) {
	dests := make([]domain.Coordinates, len(req.targets))
	parts := make([]string, 0, len(req.targets)+1)
	parts = append(parts, roundedKey(coords[req.origin]))
	for k, j := range req.targets {
		dests[k] = coords[j]
		parts = append(parts, roundedKey(coords[j]))
	}

	v, err, _ := s.rows.Do(strings.Join(parts, ";"), func() (any, error) {
		return s.provider.Row(ctx, coords[req.origin], dests)
	})
	if err != nil {
		return nil, err
	}

	results := v.([]ports.DistanceResult)
	if len(results) != len(req.targets) {
		return nil, fmt.Errorf("provider returned %d results for %d destinations", len(results), len(req.targets))
	}
	return results, nil
}

func (s *Service) fallbackRow(ctx context.Context, m *Matrix, coords []domain.Coordinates, req rowRequest, cause error, mu *sync.Mutex) {
	for _, j := range req.targets {
		d := Haversine(coords[req.origin], coords[j])
		m.Distance[req.origin][j] = d
		m.Time[req.origin][j] = d / s.opts.FallbackSpeedKph * 60
	}

	mu.Lock()
	m.Degraded = true
	m.FallbackPairs += len(req.targets)
	mu.Unlock()

	metrics.ProviderFallbacks.WithLabelValues(s.provider.Name()).Inc()
	obs.Infof(ctx, "op=matrix.road degraded=true origin=%s pairs=%d err=%v", m.IDs[req.origin], len(req.targets), cause)
}

func setRoad(m *Matrix, i, j int, r ports.DistanceResult) {
	m.Distance[i][j] = float64(r.DistanceMeters) / 1000
	m.Time[i][j] = float64(r.DurationSeconds) / 60
}
