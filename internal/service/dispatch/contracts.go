//go:generate mockgen -destination=emitter_mock_test.go -package=dispatch_test service-dispatcher/internal/events Emitter

package dispatch

import (
	"context"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/service/finder"
	"service-dispatcher/internal/service/reservation"
)

type reserver interface {
	Reserve(ctx context.Context, driverID string, hooks ...reservation.TxHook) (reservation.Outcome, error)
	Release(ctx context.Context, driverID string, hooks ...reservation.TxHook) (reservation.Outcome, error)
}

type candidateFinder interface {
	FindAvailable(ctx context.Context, q finder.Query) ([]domain.Candidate, error)
}

type reader interface {
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
}
