//go:generate mockgen -source=contracts.go -destination=statusevents_mocks_test.go -package=statusevents_test

package statusevents

import (
	"context"

	"service-dispatcher/internal/domain"
)

// DispatchPort is the subset of the orchestrator driven by status events.
type DispatchPort interface {
	AssignDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error)
	MarkInTransit(ctx context.Context, deliveryID string) (domain.Parcel, error)
	CompleteDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error)
	CancelDelivery(ctx context.Context, deliveryID, reason string) (domain.Delivery, error)
	EmergencyReplace(ctx context.Context, oldDriverID, deliveryID, reason string) (string, error)
}

// DeliveryCreator registers new deliveries.
type DeliveryCreator interface {
	CreateDelivery(ctx context.Context, d domain.Delivery) (*domain.Delivery, error)
}
