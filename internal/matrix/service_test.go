package matrix

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/ports"
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider answers rows from straight-line metres at 10 m/s and
// records every call.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	pairs int
	fail  error
}

func (p *countingProvider) Name() string { return "fake:driving" }

func (p *countingProvider) Row(ctx context.Context, origin domain.Coordinates, dests []domain.Coordinates) ([]ports.DistanceResult, error) {
	p.mu.Lock()
	p.calls++
	p.pairs += len(dests)
	p.mu.Unlock()

	if p.fail != nil {
		return nil, p.fail
	}
	out := make([]ports.DistanceResult, len(dests))
	for i, d := range dests {
		// Asymmetric on purpose: eastbound legs cost 10% more.
		meters := Haversine(origin, d) * 1000
		if d.Lon > origin.Lon {
			meters *= 1.1
		}
		out[i] = ports.DistanceResult{DistanceMeters: int(math.Round(meters)), DurationSeconds: int(math.Round(meters / 10))}
	}
	return out, nil
}

func node(id string, lon, lat float64) domain.Locatable {
	return domain.Customer{ID: id, Location: &domain.Coordinates{Lon: lon, Lat: lat}, Demand: 1}
}

func geoNodes() []domain.Locatable {
	return []domain.Locatable{
		domain.Depot{ID: "D", Location: &domain.Coordinates{Lon: -112.07, Lat: 33.45}},
		node("a", -112.10, 33.50),
		node("b", -112.00, 33.40),
		domain.Facility{ID: "F", Location: &domain.Coordinates{Lon: -112.20, Lat: 33.43}},
	}
}

func TestEuclideanAndHaversineAreSymmetric(t *testing.T) {
	svc := NewService(nil, nil, Options{})
	for _, mode := range []Mode{ModeEuclidean, ModeHaversine} {
		m, err := svc.Compute(context.Background(), geoNodes(), mode)
		require.NoError(t, err)
		for i := 0; i < m.Len(); i++ {
			assert.Zero(t, m.Distance[i][i])
			for j := 0; j < m.Len(); j++ {
				assert.Equal(t, m.Distance[i][j], m.Distance[j][i], "mode=%s (%d,%d)", mode, i, j)
				assert.Equal(t, m.Time[i][j], m.Time[j][i], "mode=%s (%d,%d)", mode, i, j)
			}
		}
		assert.False(t, m.Degraded)
	}
}

func TestEuclideanValues(t *testing.T) {
	svc := NewService(nil, nil, Options{TimePerUnit: 2})
	m, err := svc.Compute(context.Background(), []domain.Locatable{node("o", 0, 0), node("p", 3, 4)}, ModeEuclidean)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m.Distance[0][1], 1e-12)
	assert.InDelta(t, 10.0, m.Time[0][1], 1e-12)
}

func TestHaversineOneDegreeOfLatitude(t *testing.T) {
	d := Haversine(domain.Coordinates{Lat: 0, Lon: 0}, domain.Coordinates{Lat: 1, Lon: 0})
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, d, 1e-9)
}

func TestMissingCoordinatesFailBeforeProvider(t *testing.T) {
	p := &countingProvider{}
	svc := NewService(p, NewCache(nil), Options{})

	nodes := geoNodes()
	nodes[2] = domain.Customer{ID: "b", Demand: 1}

	_, err := svc.Compute(context.Background(), nodes, ModeRoad)
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "b", dv.ID)
	assert.Equal(t, "location", dv.Field)
	assert.Zero(t, p.calls)
}

func TestOutOfRangeLatitudeRejectedInGeographicModes(t *testing.T) {
	svc := NewService(nil, nil, Options{})
	nodes := []domain.Locatable{node("o", 0, 0), node("p", 10, 95)}

	_, err := svc.Compute(context.Background(), nodes, ModeHaversine)
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)

	_, err = svc.Compute(context.Background(), nodes, ModeEuclidean)
	require.NoError(t, err)
}

func TestRoadModeUsesCache(t *testing.T) {
	p := &countingProvider{}
	cache := NewCache(nil)
	svc := NewService(p, cache, Options{Workers: 2})

	first, err := svc.Compute(context.Background(), geoNodes(), ModeRoad)
	require.NoError(t, err)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, 12, cache.Len())

	second, err := svc.Compute(context.Background(), geoNodes(), ModeRoad)
	require.NoError(t, err)
	assert.Equal(t, 4, p.calls, "second compute must be served from cache")
	assert.Equal(t, first.Distance, second.Distance)

	// Road matrices may be asymmetric.
	assert.NotEqual(t, first.Distance[1][2], first.Distance[2][1])
}

func TestRoadFailureFallsBackToHaversine(t *testing.T) {
	p := &countingProvider{fail: &domain.ProviderUnavailableError{Provider: "fake", Attempts: 4, Err: errors.New("503")}}
	cache := NewCache(nil)
	svc := NewService(p, cache, Options{FallbackSpeedKph: 60})

	m, err := svc.Compute(context.Background(), geoNodes(), ModeRoad)
	require.NoError(t, err)
	assert.True(t, m.Degraded)
	assert.Equal(t, 12, m.FallbackPairs)
	assert.Zero(t, cache.Len(), "fallback values must not be cached")

	for i := 0; i < m.Len(); i++ {
		for j := 0; j < m.Len(); j++ {
			if i == j {
				continue
			}
			assert.Greater(t, m.Distance[i][j], 0.0)
			// 60 km/h means minutes equal kilometres.
			assert.InDelta(t, m.Distance[i][j], m.Time[i][j], 1e-9)
		}
	}
}

func TestExtendComputesOnlyNewPairs(t *testing.T) {
	p := &countingProvider{}
	svc := NewService(p, nil, Options{})

	base, err := svc.Compute(context.Background(), geoNodes(), ModeRoad)
	require.NoError(t, err)
	require.Equal(t, 12, p.pairs)

	nodes := append(geoNodes(), node("c", -112.05, 33.47))
	ext, err := svc.Extend(context.Background(), base, nodes)
	require.NoError(t, err)

	// 4 rows gain one target each, plus one new row of 4 targets.
	assert.Equal(t, 12+8, p.pairs)
	assert.Equal(t, base.Distance[1][2], ext.Distance[1][2])
	assert.Greater(t, ext.Distance[4][0], 0.0)
	assert.Greater(t, ext.Distance[0][4], 0.0)
}

func TestDuplicateNodeIDRejected(t *testing.T) {
	svc := NewService(nil, nil, Options{})
	_, err := svc.Compute(context.Background(), []domain.Locatable{node("a", 0, 0), node("a", 1, 1)}, ModeEuclidean)
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "id", dv.Field)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("ROAD")
	require.NoError(t, err)
	assert.Equal(t, ModeRoad, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHaversine, m)

	_, err = ParseMode("manhattan")
	assert.Error(t, err)
}
