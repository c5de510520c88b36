package distance

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/ports"
	"context"
	"fmt"
	"math"
)

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
	Seconds  int
}

// MockProvider answers from fixed pairs and, for any other pair, from the
// great-circle distance stretched by Detour and driven at SpeedKph. It needs
// no network and is meant for local runs and tests.
type MockProvider struct {
	Detour   float64
	SpeedKph float64
	m        map[string]ports.DistanceResult
}

func NewMockProvider(pairs []MockPair) *MockProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[mockKey(p.From, p.To)] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockProvider{Detour: 1.3, SpeedKph: 40, m: m}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Row(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	if p.SpeedKph <= 0 {
		return nil, fmt.Errorf("mock provider: speed must be positive, got %v", p.SpeedKph)
	}

	out := make([]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		if r, ok := p.m[mockKey(origin, d)]; ok {
			out[i] = r
			continue
		}
		km := matrix.Haversine(origin, d) * p.Detour
		out[i] = ports.DistanceResult{
			DistanceMeters:  int(math.Round(km * 1000)),
			DurationSeconds: int(math.Round(km / p.SpeedKph * 3600)),
		}
	}
	return out, nil
}

func mockKey(a, b domain.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f|%.5f,%.5f", a.Lat, a.Lon, b.Lat, b.Lon)
}
