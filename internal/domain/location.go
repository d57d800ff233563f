package domain

import (
	"fmt"
	"math"

	"service-dispatcher/internal/apperr"
)

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinates are finite and within their ranges.
func (l Location) Validate() error {
	if !finite(l.Lat) || !finite(l.Lng) {
		return fmt.Errorf("%w: coordinates must be finite numbers", apperr.ErrInvalid)
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90,90]", apperr.ErrInvalid, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180,180]", apperr.ErrInvalid, l.Lng)
	}
	return nil
}

// Zone is a circular partition used to scope driver search.
type Zone struct {
	ID           string
	Center       Location
	RadiusMeters float64
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
