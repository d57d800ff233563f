package handlers

import (
	"context"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/service/dispatch"
	"service-dispatcher/internal/service/finder"
)

type dispatchUsecase interface {
	AssignDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error)
	AssignToDriver(ctx context.Context, deliveryID, driverID string, force bool) (domain.Delivery, error)
	EmergencyReplace(ctx context.Context, oldDriverID, deliveryID, reason string) (string, error)
	CompleteDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error)
	CancelDelivery(ctx context.Context, deliveryID, reason string) (domain.Delivery, error)
	MarkInTransit(ctx context.Context, deliveryID string) (domain.Parcel, error)
	UpdateParcelStatus(ctx context.Context, parcelID string, status domain.ParcelStatus) (domain.Parcel, error)
}

// NewDispatchUsecase wires a dispatch.Service into a dispatchUsecase.
func NewDispatchUsecase(svc *dispatch.Service) dispatchUsecase {
	return svc
}

type nearbyUsecase interface {
	FindAvailable(ctx context.Context, q finder.Query) ([]domain.Candidate, error)
}

// NewNearbyUsecase wires a finder.Finder into a nearbyUsecase.
func NewNearbyUsecase(f *finder.Finder) nearbyUsecase {
	return f
}

type capacityUsecase interface {
	Capacity(ctx context.Context, driverID string, refresh bool) (domain.CapacityView, bool, error)
}

// NewCapacityUsecase wires a finder.CapacityReader into a capacityUsecase.
func NewCapacityUsecase(r *finder.CapacityReader) capacityUsecase {
	return r
}
