package statusevents

import (
	"time"

	"service-dispatcher/internal/domain"
)

// Types of delivery status events
const (
	TypeCreated      = "created"
	TypePickedUp     = "picked_up"
	TypeCompleted    = "completed"
	TypeCancelled    = "cancelled"
	TypeDriverOutage = "driver_outage"
)

// Event is a delivery status change reported by an upstream system.
type Event struct {
	Type       string
	DeliveryID string
	ParcelID   string
	DriverID   string
	Priority   domain.Priority
	Pickup     domain.Location
	Reason     string
	At         time.Time
}
