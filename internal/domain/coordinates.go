package domain

import "math"

// Immutable coordinates. Lon/Lat are degrees in geographic modes and plain
// x/y values in euclidean mode.
type Coordinates struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Finite reports whether both components are usable numbers.
func (c Coordinates) Finite() bool {
	return !math.IsNaN(c.Lon) && !math.IsNaN(c.Lat) && !math.IsInf(c.Lon, 0) && !math.IsInf(c.Lat, 0)
}

// Geographic reports whether the pair lies within latitude/longitude ranges.
func (c Coordinates) Geographic() bool {
	return c.Finite() && c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
