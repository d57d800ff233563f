package kafka

import (
	"fmt"
	"strings"
	"time"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/service/statusevents"
)

// LocationDTO is a point on the wire.
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatusEventDTO is a data transfer object for statusevents.Event
type StatusEventDTO struct {
	Type       string       `json:"type"`
	DeliveryID string       `json:"delivery_id"`
	ParcelID   string       `json:"parcel_id,omitempty"`
	DriverID   string       `json:"driver_id,omitempty"`
	Priority   string       `json:"priority,omitempty"`
	Pickup     *LocationDTO `json:"pickup,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	At         time.Time    `json:"at"`
}

var priorities = map[string]domain.Priority{
	"":       domain.PriorityNormal,
	"low":    domain.PriorityLow,
	"normal": domain.PriorityNormal,
	"high":   domain.PriorityHigh,
}

// ToDomain converts StatusEventDTO to statusevents.Event.
// Malformed payloads are reported as permanent errors.
func (dto StatusEventDTO) ToDomain() (statusevents.Event, error) {
	ev := statusevents.Event{
		Type:       strings.ToLower(strings.TrimSpace(dto.Type)),
		DeliveryID: strings.TrimSpace(dto.DeliveryID),
		ParcelID:   strings.TrimSpace(dto.ParcelID),
		DriverID:   strings.TrimSpace(dto.DriverID),
		Reason:     strings.TrimSpace(dto.Reason),
		At:         dto.At,
	}
	if ev.Type == "" {
		return statusevents.Event{}, Permanent(fmt.Errorf("%w: empty type", apperr.ErrInvalid))
	}
	if ev.DeliveryID == "" {
		return statusevents.Event{}, Permanent(fmt.Errorf("%w: empty delivery_id", apperr.ErrInvalid))
	}

	p, ok := priorities[strings.ToLower(strings.TrimSpace(dto.Priority))]
	if !ok {
		return statusevents.Event{}, Permanent(fmt.Errorf("%w: unknown priority %q", apperr.ErrInvalid, dto.Priority))
	}
	ev.Priority = p

	if dto.Pickup != nil {
		ev.Pickup = domain.Location{Lat: dto.Pickup.Lat, Lng: dto.Pickup.Lng}
	}
	return ev, nil
}
