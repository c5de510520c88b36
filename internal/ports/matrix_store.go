package ports

import (
	"context"
	"fmt"
)

// CacheKey identifies a cached pair of rounded coordinates under a profile.
type CacheKey struct {
	Profile     string
	Origin      string
	Destination string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Profile, k.Origin, k.Destination)
}

// Port: persistence backend behind the matrix cache.
type MatrixStore interface {
	// Load returns every stored entry. A malformed backend yields a
	// *domain.CacheCorruptionError.
	Load(ctx context.Context) (map[CacheKey]DistanceResult, error)
	// Save upserts entries.
	Save(ctx context.Context, entries map[CacheKey]DistanceResult) error
}
