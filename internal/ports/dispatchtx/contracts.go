package dispatchtx

import (
	"context"

	"service-dispatcher/internal/domain"
)

// Repository is the set of row-locked operations available inside a dispatch transaction.
type Repository interface {
	GetDriverForUpdate(ctx context.Context, id string) (*domain.Driver, error)
	UpdateDriverLoad(ctx context.Context, id string, load int, status domain.DriverStatus) (int64, error)

	GetDeliveryForUpdate(ctx context.Context, id string) (*domain.Delivery, error)
	SetDeliveryDriver(ctx context.Context, deliveryID, driverID string) error
	SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
	MarkDeliveryManual(ctx context.Context, id, reason string) error

	GetParcelForUpdate(ctx context.Context, id string) (*domain.Parcel, error)
	SetParcelStatus(ctx context.Context, id string, status domain.ParcelStatus) error
}

// Runner is a transaction runner. fn's error rolls the transaction back.
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
