// Package finder locates available drivers around a point.
package finder

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/cache"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/geo"
	"service-dispatcher/internal/logx"
)

// ETA model constants.
const (
	BaseSpeedMetersPerMinute = 500.0
	TrafficFactor            = 1.3
	LoadPenaltyMinutes       = 4.0
)

const cacheTimeout = 500 * time.Millisecond

// EstimateETA returns the minutes a driver needs to reach a point distanceMeters away.
func EstimateETA(distanceMeters float64, currentLoad int) float64 {
	return distanceMeters/BaseSpeedMetersPerMinute*TrafficFactor + LoadPenaltyMinutes*float64(currentLoad)
}

// Query describes a nearby search.
type Query struct {
	Location     domain.Location
	RadiusMeters float64
	Limit        int
	ZoneID       string
	// Exclude lists driver ids removed from the result.
	Exclude []string
}

func (q Query) validate() error {
	if err := q.Location.Validate(); err != nil {
		return err
	}
	if !(q.RadiusMeters > 0) || math.IsInf(q.RadiusMeters, 1) {
		return fmt.Errorf("%w: radius must be a positive finite number", apperr.ErrInvalid)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", apperr.ErrInvalid)
	}
	return nil
}

// Finder answers nearby searches from the durable store with a short-lived cache in front.
type Finder struct {
	drivers driverSource
	cache   nearbyCache
	logger  logx.Logger
}

// New creates a new Finder. cache may be nil.
func New(drivers driverSource, nearby nearbyCache, logger logx.Logger) *Finder {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Finder{drivers: drivers, cache: nearby, logger: logger}
}

// FindAvailable returns up to Limit available drivers within the radius,
// nearest first with ties broken by driver id.
func (f *Finder) FindAvailable(ctx context.Context, q Query) ([]domain.Candidate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	limit := q.Limit + len(q.Exclude)
	key := cache.NearbyKey(q.Location, q.RadiusMeters, limit, q.ZoneID)

	candidates, ok := f.cached(ctx, key)
	if !ok {
		var err error
		candidates, err = f.search(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		f.store(ctx, key, candidates)
	}

	return exclude(candidates, q.Exclude, q.Limit), nil
}

func (f *Finder) search(ctx context.Context, q Query, limit int) ([]domain.Candidate, error) {
	drivers, err := f.drivers.ListAvailableDrivers(ctx, geo.BoundingBox(q.Location, q.RadiusMeters), q.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("find available drivers: %w", err)
	}

	out := make([]domain.Candidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.HasCapacity() {
			continue
		}
		dist := geo.DistanceMeters(q.Location, d.Location)
		if dist > q.RadiusMeters {
			continue
		}
		out = append(out, domain.Candidate{
			Driver:         d,
			DistanceMeters: dist,
			ETAMinutes:     EstimateETA(dist, d.CurrentLoad),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Driver.ID < out[j].Driver.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Finder) cached(ctx context.Context, key string) ([]domain.Candidate, bool) {
	if f.cache == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	candidates, ok, err := f.cache.Get(cctx, key)
	if err != nil {
		f.logger.Warn("nearby cache read failed", logx.String("key", key), logx.Err(err))
		return nil, false
	}
	return candidates, ok
}

func (f *Finder) store(ctx context.Context, key string, candidates []domain.Candidate) {
	if f.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	if err := f.cache.Store(cctx, key, candidates); err != nil {
		f.logger.Warn("nearby cache write failed", logx.String("key", key), logx.Err(err))
	}
}

func exclude(candidates []domain.Candidate, ids []string, limit int) []domain.Candidate {
	skip := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}
	out := make([]domain.Candidate, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if _, ok := skip[c.Driver.ID]; ok {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
