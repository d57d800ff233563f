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
	nearbyPrefix     = "drivers:nearby:"
	defaultNearbyTTL = 30 * time.Second
)

// NearbyKey returns the cache key of a nearby search.
// Coordinates are rounded to five decimals, about one meter.
func NearbyKey(center domain.Location, radiusMeters float64, limit int, zoneID string) string {
	key := fmt.Sprintf("%s%.5f:%.5f:%.0f:%d", nearbyPrefix, center.Lat, center.Lng, radiusMeters, limit)
	if zoneID != "" {
		key += ":" + zoneID
	}
	return key
}

// NearbyCache stores short-lived results of nearby driver searches.
type NearbyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewNearbyCache creates a new NearbyCache. A non-positive ttl selects the default.
func NewNearbyCache(client redis.UniversalClient, ttl time.Duration) *NearbyCache {
	if ttl <= 0 {
		ttl = defaultNearbyTTL
	}
	return &NearbyCache{client: client, ttl: ttl}
}

// Get returns the cached candidates; ok is false on a miss.
func (c *NearbyCache) Get(ctx context.Context, key string) (candidates []domain.Candidate, ok bool, err error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get nearby %q: %w: %w", key, apperr.ErrUnavailable, err)
	}
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, false, fmt.Errorf("decode nearby %q: %w", key, err)
	}
	return candidates, true, nil
}

// Store caches candidates under key.
func (c *NearbyCache) Store(ctx context.Context, key string, candidates []domain.Candidate) error {
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encode nearby %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store nearby %q: %w: %w", key, apperr.ErrUnavailable, err)
	}
	return nil
}

// InvalidateAll drops every cached nearby search.
func (c *NearbyCache) InvalidateAll(ctx context.Context) (int, error) {
	return DeletePattern(ctx, c.client, nearbyPrefix+"*")
}
