package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
)

const (
	capacityPrefix        = "driver:capacity:"
	defaultCapacityTTL    = 60 * time.Second
	defaultCASMaxAttempts = 5
)

// CapacityKey returns the cache key of one driver's capacity view.
func CapacityKey(driverID string) string {
	return capacityPrefix + driverID
}

// CapacityCache stores per-driver capacity views keyed by driver id.
// Entries are versioned so an older view never replaces a newer one.
type CapacityCache struct {
	client     redis.UniversalClient
	ttl        time.Duration
	maxRetries int
}

// NewCapacityCache creates a new CapacityCache. A non-positive ttl selects the default.
func NewCapacityCache(client redis.UniversalClient, ttl time.Duration) *CapacityCache {
	if ttl <= 0 {
		ttl = defaultCapacityTTL
	}
	return &CapacityCache{client: client, ttl: ttl, maxRetries: defaultCASMaxAttempts}
}

// Get returns the cached view, nil on a miss.
func (c *CapacityCache) Get(ctx context.Context, driverID string) (*domain.CapacityView, error) {
	raw, err := c.client.Get(ctx, CapacityKey(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get capacity %q: %w: %w", driverID, apperr.ErrUnavailable, err)
	}

	var view domain.CapacityView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode capacity %q: %w", driverID, err)
	}
	return &view, nil
}

// Store writes view unless the cache already holds the same or a newer version.
// It reports whether the entry was written.
func (c *CapacityCache) Store(ctx context.Context, view domain.CapacityView) (bool, error) {
	next, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("encode capacity %q: %w", view.DriverID, err)
	}

	written := false
	err = CompareAndSet(ctx, c.client, CapacityKey(view.DriverID), c.ttl, c.maxRetries,
		func(current []byte, found bool) ([]byte, bool, error) {
			written = false
			if found {
				var stored domain.CapacityView
				// Undecodable entries are overwritten.
				if json.Unmarshal(current, &stored) == nil && stored.Version >= view.Version {
					return nil, false, nil
				}
			}
			written = true
			return next, true, nil
		})
	if err != nil {
		return false, err
	}
	return written, nil
}

// Invalidate drops the cached view of one driver.
func (c *CapacityCache) Invalidate(ctx context.Context, driverID string) error {
	if err := c.client.Del(ctx, CapacityKey(driverID)).Err(); err != nil {
		return fmt.Errorf("invalidate capacity %q: %w: %w", driverID, apperr.ErrUnavailable, err)
	}
	return nil
}

// InvalidatePattern drops every capacity entry whose driver id matches pattern.
func (c *CapacityCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	return DeletePattern(ctx, c.client, capacityPrefix+pattern)
}
