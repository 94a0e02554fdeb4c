// Package geodist provides the distance formulas shared by the proximity
// engines: exact haversine, the equirectangular short-range approximation,
// and the bounding-box coordinate deltas derived from a distance threshold.
// All functions work in meters on a sphere of the mean Earth radius, so
// the approximate and exact stages are self-consistent.
package geodist

import "math"

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// minCosLat bounds the longitude widening near the poles, where
// cos(lat) approaches zero and the per-degree longitude span collapses.
const minCosLat = 0.2

const degPerRad = 180.0 / math.Pi

// Haversine returns the great-circle distance between two points in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dPhi := (lat2 - lat1) * math.Pi / 180.0
	dLambda := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Equirectangular returns the planar approximation of the distance
// between two points in meters. Fast and accurate over short ranges;
// it over- or undershoots haversine slightly, which is why callers
// compare it against a relaxed threshold rather than the exact one.
func Equirectangular(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Pi / 180.0 * math.Cos((lat1+lat2)/2*math.Pi/180.0)
	y := (lat2 - lat1) * math.Pi / 180.0
	return EarthRadiusMeters * math.Sqrt(x*x+y*y)
}

// BBoxHalfWidths converts a distance threshold into maximum latitude and
// longitude deltas in degrees around a point at the given latitude. The
// longitude delta widens by 1/cos(lat) to compensate for meridian
// convergence, floored at minCosLat so the width stays bounded near the
// poles.
func BBoxHalfWidths(lat, thresholdMeters float64) (dLatMax, dLonMax float64) {
	dLatMax = thresholdMeters * degPerRad / EarthRadiusMeters
	dLonMax = dLatMax / math.Max(minCosLat, math.Cos(lat*math.Pi/180.0))
	return dLatMax, dLonMax
}

// WithinBBox reports whether point 2 falls inside the axis-aligned box of
// half-widths derived from thresholdMeters around point 1. This is the
// cheapest rejection test of the filter cascade: it never computes a
// distance, only coordinate deltas.
func WithinBBox(lat1, lon1, lat2, lon2, thresholdMeters float64) bool {
	dLatMax, dLonMax := BBoxHalfWidths(lat1, thresholdMeters)
	return math.Abs(lat1-lat2) <= dLatMax && math.Abs(lon1-lon2) <= dLonMax
}
