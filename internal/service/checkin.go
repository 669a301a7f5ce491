package service

import (
	"math"
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// EarthRadiusMeters is the sphere radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between a and b using
// the haversine formula.
func DistanceMeters(a, b model.Position) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h just past 1 for near-antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinCheckinWindow reports whether now lies in [at-window, at+window].
// Both bounds are inclusive.
func WithinCheckinWindow(now, at time.Time, window time.Duration) bool {
	return !now.Before(at.Add(-window)) && !now.After(at.Add(window))
}

// WithinRadius reports whether pos lies no farther than radius meters from
// center.  A NaN distance is never within the radius.
func WithinRadius(pos, center model.Position, radius float64) (float64, bool) {
	d := DistanceMeters(pos, center)
	return d, d <= radius
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func roundMeters(m float64) int { return int(math.Round(m)) }
