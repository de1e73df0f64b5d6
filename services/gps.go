package services

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geofence is either circular (Center + RadiusMeters) or polygonal
// (Vertices, at least three). If Vertices is non-empty the polygon wins.
type Geofence struct {
	Center       Point
	RadiusMeters float64
	Vertices     []Point
}

// ValidateCoordinates rejects out-of-range values, NaN/Inf, and the exact
// (0,0) pair. Devices without a fix report (0,0), so it is treated as
// "no location", not a legitimate spot in the Gulf of Guinea.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: coordinates are not finite numbers", ErrInvalidLocation)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidLocation, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidLocation, lon)
	}
	if lat == 0 && lon == 0 {
		return fmt.Errorf("%w: null island (0,0) indicates no GPS fix", ErrInvalidLocation)
	}
	return nil
}

// ValidateAccuracy rejects a reported GPS accuracy that is negative,
// non-finite, or worse than maxAllowedMeters.
func ValidateAccuracy(accuracyMeters, maxAllowedMeters float64) error {
	if math.IsNaN(accuracyMeters) || math.IsInf(accuracyMeters, 0) || accuracyMeters < 0 {
		return fmt.Errorf("%w: accuracy %f is not a valid radius", ErrInsufficientAccuracy, accuracyMeters)
	}
	if accuracyMeters > maxAllowedMeters {
		return fmt.Errorf("%w: accuracy %.1fm exceeds limit %.1fm", ErrInsufficientAccuracy, accuracyMeters, maxAllowedMeters)
	}
	return nil
}

// DistanceMeters returns the great-circle (haversine) distance between two
// points. Symmetric; zero for identical points.
func DistanceMeters(p1, p2 Point) float64 {
	lat1 := p1.Latitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	dLat := (p2.Latitude - p1.Latitude) * math.Pi / 180
	dLon := (p2.Longitude - p1.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// WithinGeofence reports whether point lies inside the fence. The boundary
// counts as inside for both fence kinds: a visitor standing exactly on the
// radius or on a polygon edge is admitted.
func WithinGeofence(point Point, fence Geofence) bool {
	if len(fence.Vertices) >= 3 {
		return pointInPolygon(point, fence.Vertices)
	}
	return DistanceMeters(point, fence.Center) <= fence.RadiusMeters
}

const edgeEpsilon = 1e-9

// pointInPolygon runs an even-odd ray cast after an explicit edge check,
// so boundary points are always contained regardless of crossing parity.
func pointInPolygon(p Point, vs []Point) bool {
	n := len(vs)
	for i := 0; i < n; i++ {
		if onSegment(p, vs[i], vs[(i+1)%n]) {
			return true
		}
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vs[i], vs[j]
		if (vi.Latitude > p.Latitude) != (vj.Latitude > p.Latitude) {
			x := (vj.Longitude-vi.Longitude)*(p.Latitude-vi.Latitude)/(vj.Latitude-vi.Latitude) + vi.Longitude
			if p.Longitude < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(p, a, b Point) bool {
	cross := (b.Longitude-a.Longitude)*(p.Latitude-a.Latitude) -
		(b.Latitude-a.Latitude)*(p.Longitude-a.Longitude)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	if p.Latitude < math.Min(a.Latitude, b.Latitude)-edgeEpsilon ||
		p.Latitude > math.Max(a.Latitude, b.Latitude)+edgeEpsilon {
		return false
	}
	if p.Longitude < math.Min(a.Longitude, b.Longitude)-edgeEpsilon ||
		p.Longitude > math.Max(a.Longitude, b.Longitude)+edgeEpsilon {
		return false
	}
	return true
}
