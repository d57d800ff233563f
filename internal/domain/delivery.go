package domain

import "time"

// DeliveryStatus is the lifecycle of a delivery.
type DeliveryStatus string

// List of possible delivery statuses
const (
	DeliveryStarted   DeliveryStatus = "started"
	DeliveryCompleted DeliveryStatus = "completed"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// Priority is a small hint used when scoring drivers.
type Priority int

// List of priorities
const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Delivery binds a parcel to the driver carrying it.
// DriverID is empty while the delivery is unassigned.
type Delivery struct {
	ID           string
	ParcelID     string
	DriverID     string
	Status       DeliveryStatus
	Priority     Priority
	Pickup       Location
	NeedsManual  bool
	ManualReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assigned reports whether a driver carries the delivery.
func (d Delivery) Assigned() bool { return d.DriverID != "" }

// ParcelStatus is the lifecycle of a parcel.
type ParcelStatus string

// List of possible parcel statuses
const (
	ParcelPending   ParcelStatus = "pending"
	ParcelAssigned  ParcelStatus = "assigned"
	ParcelInTransit ParcelStatus = "in_transit"
	ParcelDelivered ParcelStatus = "delivered"
	ParcelReturned  ParcelStatus = "returned"
	ParcelLost      ParcelStatus = "lost"
	ParcelCancelled ParcelStatus = "cancelled"
)

var allowedParcelStatuses = [...]ParcelStatus{
	ParcelPending, ParcelAssigned, ParcelInTransit,
	ParcelDelivered, ParcelReturned, ParcelLost, ParcelCancelled,
}

// Valid checks if the ParcelStatus is valid
func (s ParcelStatus) Valid() bool {
	for _, v := range allowedParcelStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Parcel is the item moved by a delivery.
type Parcel struct {
	ID        string
	Status    ParcelStatus
	UpdatedAt time.Time
}
