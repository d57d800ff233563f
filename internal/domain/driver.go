package domain

import "time"

// DriverStatus represents the availability of a driver.
type DriverStatus string

// List of possible driver statuses
const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

var allowedDriverStatuses = [...]DriverStatus{
	DriverAvailable, DriverBusy, DriverOffline,
}

// Valid checks if the DriverStatus is valid
func (s DriverStatus) Valid() bool {
	for _, v := range allowedDriverStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Driver is a courier with a bounded number of concurrent deliveries.
// CurrentLoad and Status are only mutated through the reservation engine.
type Driver struct {
	ID                  string
	Name                string
	Location            Location
	MaxCapacity         int
	CurrentLoad         int
	Status              DriverStatus
	Rating              float64
	CompletedDeliveries int
	ZoneID              string
	Version             int64
	UpdatedAt           time.Time
}

// HasCapacity reports whether the driver can take one more delivery.
func (d Driver) HasCapacity() bool {
	return d.Status == DriverAvailable && d.CurrentLoad < d.MaxCapacity
}

// Reserve returns the driver with one more unit of load claimed.
// The second result is false when the driver is not available or already full.
func (d Driver) Reserve() (Driver, bool) {
	if !d.HasCapacity() {
		return d, false
	}
	d.CurrentLoad++
	if d.CurrentLoad == d.MaxCapacity {
		d.Status = DriverBusy
	}
	return d, true
}

// Release returns the driver with one unit of load given back.
// A driver forced offline stays offline.
func (d Driver) Release() (Driver, bool) {
	if d.CurrentLoad <= 0 {
		return d, false
	}
	d.CurrentLoad--
	if d.Status == DriverBusy && d.CurrentLoad < d.MaxCapacity {
		d.Status = DriverAvailable
	}
	return d, true
}

// CapacityView is the cached projection of a driver's load.
type CapacityView struct {
	DriverID    string    `json:"driver_id"`
	Available   bool      `json:"available"`
	Capacity    int       `json:"capacity"`
	CurrentLoad int       `json:"current_load"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// View builds the capacity projection of the driver.
func (d Driver) View(now time.Time) CapacityView {
	return CapacityView{
		DriverID:    d.ID,
		Available:   d.HasCapacity(),
		Capacity:    d.MaxCapacity,
		CurrentLoad: d.CurrentLoad,
		Version:     d.Version,
		LastUpdated: now,
	}
}

// Candidate is a driver found near a point.
type Candidate struct {
	Driver         Driver  `json:"driver"`
	DistanceMeters float64 `json:"distance_meters"`
	ETAMinutes     float64 `json:"eta_minutes"`
}
