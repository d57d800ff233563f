package finder

import (
	"context"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/geo"
)

type driverSource interface {
	ListAvailableDrivers(ctx context.Context, box geo.Box, zoneID string) ([]domain.Driver, error)
}

type nearbyCache interface {
	Get(ctx context.Context, key string) ([]domain.Candidate, bool, error)
	Store(ctx context.Context, key string, candidates []domain.Candidate) error
}
