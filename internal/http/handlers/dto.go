package handlers

import "time"

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type deliveryResponse struct {
	ID           string      `json:"id"`
	ParcelID     string      `json:"parcel_id"`
	DriverID     string      `json:"driver_id,omitempty"`
	Status       string      `json:"status"`
	Priority     int         `json:"priority"`
	Pickup       locationDTO `json:"pickup"`
	NeedsManual  bool        `json:"needs_manual"`
	ManualReason string      `json:"manual_reason,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type parcelResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
	Force    bool   `json:"force"`
}

type emergencyReplaceRequest struct {
	OldDriverID string `json:"old_driver_id"`
	Reason      string `json:"reason"`
}

type emergencyReplaceResponse struct {
	DeliveryID  string `json:"delivery_id"`
	OldDriverID string `json:"old_driver_id"`
	DriverID    string `json:"driver_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type parcelStatusRequest struct {
	Status string `json:"status"`
}

type candidateResponse struct {
	DriverID       string      `json:"driver_id"`
	Name           string      `json:"name"`
	Location       locationDTO `json:"location"`
	ZoneID         string      `json:"zone_id,omitempty"`
	CurrentLoad    int         `json:"current_load"`
	MaxCapacity    int         `json:"max_capacity"`
	Rating         float64     `json:"rating"`
	DistanceMeters float64     `json:"distance_meters"`
	ETAMinutes     float64     `json:"eta_minutes"`
}

type capacityResponse struct {
	DriverID    string    `json:"driver_id"`
	Available   bool      `json:"available"`
	Capacity    int       `json:"capacity"`
	CurrentLoad int       `json:"current_load"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Cached      bool      `json:"cached"`
}
