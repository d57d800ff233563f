package reservation

import (
	"context"
	"time"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/lock"
)

type locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Token, bool, error)
	Release(ctx context.Context, key string, token lock.Token) (bool, error)
}

type capacityCache interface {
	Store(ctx context.Context, view domain.CapacityView) (bool, error)
}

type nearbyCache interface {
	InvalidateAll(ctx context.Context) (int, error)
}
