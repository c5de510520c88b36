package ports

import (
	"collection-route-service/internal/domain"
	"context"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  int `json:"distance_m"`
	DurationSeconds int `json:"duration_s"`
}

// Contract for a road-network routing provider.
type RouteProvider interface {
	// Name identifies the provider and profile; it namespaces cache keys.
	Name() string
	// Row returns results from one origin to many destinations, in order.
	Row(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]DistanceResult, error)
}
