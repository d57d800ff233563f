package geo

import (
	"math"

	"service-dispatcher/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// boxSlack widens the box by a hair so that rounding never drops a point on the rim.
const boxSlack = 1e-9

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box is a lat/lng rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a rectangle that contains every point within radius of center,
// measured on the same sphere as DistanceMeters.
// Near the poles the longitude span widens to the full range.
func BoundingBox(center domain.Location, radiusMeters float64) Box {
	angular := radiusMeters / EarthRadiusMeters
	dLat := angular*180/math.Pi + boxSlack
	b := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if angular >= math.Pi/2 {
		return b
	}
	cos := math.Cos(center.Lat * math.Pi / 180)
	s := math.Sin(angular) / cos
	if cos < 1e-6 || s >= 1 {
		return b
	}
	// Widest longitude offset of a spherical cap, reached away from the center parallel.
	dLng := math.Asin(s)*180/math.Pi + boxSlack
	if dLng >= 180 || center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return b
	}
	b.MinLng = center.Lng - dLng
	b.MaxLng = center.Lng + dLng
	return b
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(p domain.Location) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
