package finder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
)

type driverReader interface {
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
}

type capacityCache interface {
	Get(ctx context.Context, driverID string) (*domain.CapacityView, error)
	Store(ctx context.Context, view domain.CapacityView) (bool, error)
	Invalidate(ctx context.Context, driverID string) error
}

// CapacityReader serves driver capacity views through the capacity cache.
// A miss or an unreachable cache falls back to the durable driver row,
// and the recomputed view is written back.
type CapacityReader struct {
	drivers driverReader
	cache   capacityCache
	logger  logx.Logger
	now     func() time.Time
}

// NewCapacityReader creates a new CapacityReader. cache may be nil.
func NewCapacityReader(drivers driverReader, cache capacityCache, logger logx.Logger) *CapacityReader {
	if logger == nil {
		logger = logx.Nop()
	}
	return &CapacityReader{drivers: drivers, cache: cache, logger: logger, now: time.Now}
}

// Capacity returns the driver's capacity view and whether it came from the cache.
// With refresh set the cached entry is dropped and rebuilt from the store.
func (r *CapacityReader) Capacity(ctx context.Context, driverID string, refresh bool) (domain.CapacityView, bool, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return domain.CapacityView{}, false, fmt.Errorf("%w: empty driver id", apperr.ErrInvalid)
	}

	if refresh {
		r.invalidate(ctx, driverID)
	} else if view, ok := r.cached(ctx, driverID); ok {
		return view, true, nil
	}

	d, err := r.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return domain.CapacityView{}, false, fmt.Errorf("load driver %q: %w", driverID, err)
	}
	if d == nil {
		return domain.CapacityView{}, false, fmt.Errorf("driver %q: %w", driverID, apperr.ErrNotFound)
	}

	view := d.View(r.now())
	r.store(ctx, view)
	return view, false, nil
}

func (r *CapacityReader) cached(ctx context.Context, driverID string) (domain.CapacityView, bool) {
	if r.cache == nil {
		return domain.CapacityView{}, false
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	view, err := r.cache.Get(cctx, driverID)
	if err != nil {
		r.logger.Warn("capacity cache read failed", logx.String("driver_id", driverID), logx.Err(err))
		return domain.CapacityView{}, false
	}
	if view == nil {
		return domain.CapacityView{}, false
	}
	return *view, true
}

func (r *CapacityReader) store(ctx context.Context, view domain.CapacityView) {
	if r.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if _, err := r.cache.Store(cctx, view); err != nil {
		r.logger.Warn("capacity cache write failed", logx.String("driver_id", view.DriverID), logx.Err(err))
	}
}

func (r *CapacityReader) invalidate(ctx context.Context, driverID string) {
	if r.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	if err := r.cache.Invalidate(cctx, driverID); err != nil {
		r.logger.Warn("capacity cache invalidation failed", logx.String("driver_id", driverID), logx.Err(err))
	}
}
