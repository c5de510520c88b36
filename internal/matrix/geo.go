package matrix

import (
	"collection-route-service/internal/domain"
	"fmt"
	"math"
	"strings"
)

// Mode selects how pairwise distance and time are obtained.
type Mode string

const (
	ModeEuclidean Mode = "euclidean"
	ModeHaversine Mode = "haversine"
	ModeRoad      Mode = "road"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0088

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEuclidean:
		return ModeEuclidean, nil
	case "", ModeHaversine:
		return ModeHaversine, nil
	case ModeRoad, "osrm", "road_network":
		return ModeRoad, nil
	default:
		return "", fmt.Errorf("unknown distance mode %q", s)
	}
}

// Analytic reports whether the mode is computed without a provider.
func (m Mode) Analytic() bool { return m == ModeEuclidean || m == ModeHaversine }

// Haversine returns the great-circle distance in kilometres.
func Haversine(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Clamp guards against h drifting above 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Euclidean treats Lon/Lat as planar x/y.
func Euclidean(a, b domain.Coordinates) float64 {
	return math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
}

// roundedKey is the canonical cache representation of a coordinate:
// five decimals, roughly one metre at the equator.
func roundedKey(c domain.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lon)
}
