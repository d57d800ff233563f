// Package reservation claims and returns units of driver capacity under a per-driver lock.
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/lock"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/ports/dispatchtx"
)

// Outcome is the result of a reserve or release attempt.
type Outcome string

// List of outcomes
const (
	// OutcomeApplied means the capacity change was committed.
	OutcomeApplied Outcome = "applied"
	// OutcomeLockBusy means another caller holds the driver's lock.
	OutcomeLockBusy Outcome = "lock_busy"
	// OutcomeRejected means the driver state did not allow the change.
	OutcomeRejected Outcome = "rejected"
)

// Applied reports whether the change took effect.
func (o Outcome) Applied() bool { return o == OutcomeApplied }

// TxHook runs inside the reservation transaction after the driver row was updated.
// Its error rolls the whole change back.
type TxHook func(ctx context.Context, tx dispatchtx.Repository, driver domain.Driver) error

// Config bounds how long a reservation may hold its lock and its transaction.
type Config struct {
	LockTTL   time.Duration
	TxTimeout time.Duration
}

const cacheTimeout = time.Second

// Engine serializes capacity changes of each driver.
type Engine struct {
	locks    locker
	tx       dispatchtx.Runner
	capacity capacityCache
	nearby   nearbyCache
	cfg      Config
	logger   logx.Logger
	counter  *prometheus.CounterVec
	now      func() time.Time
}

// NewEngine creates a new Engine. counter may be nil.
func NewEngine(
	locks locker,
	tx dispatchtx.Runner,
	capacity capacityCache,
	nearby nearbyCache,
	cfg Config,
	logger logx.Logger,
	counter *prometheus.CounterVec,
) *Engine {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.TxTimeout <= 0 || cfg.TxTimeout >= cfg.LockTTL {
		cfg.TxTimeout = cfg.LockTTL * 3 / 5
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Engine{
		locks:    locks,
		tx:       tx,
		capacity: capacity,
		nearby:   nearby,
		cfg:      cfg,
		logger:   logger,
		counter:  counter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type mutation struct {
	op    string
	apply func(domain.Driver) (domain.Driver, bool)
}

var (
	reserveOp = mutation{op: "reserve", apply: domain.Driver.Reserve}
	releaseOp = mutation{op: "release", apply: domain.Driver.Release}
)

// Reserve claims one unit of the driver's capacity.
// hooks run in the same transaction only when the claim is applied.
func (e *Engine) Reserve(ctx context.Context, driverID string, hooks ...TxHook) (Outcome, error) {
	return e.run(ctx, reserveOp, driverID, hooks)
}

// Release returns one unit of the driver's capacity.
// hooks run in the same transaction only when the release is applied.
func (e *Engine) Release(ctx context.Context, driverID string, hooks ...TxHook) (Outcome, error) {
	return e.run(ctx, releaseOp, driverID, hooks)
}

func (e *Engine) run(ctx context.Context, m mutation, driverID string, hooks []TxHook) (outcome Outcome, err error) {
	if driverID == "" {
		return OutcomeRejected, fmt.Errorf("%w: empty driver id", apperr.ErrInvalid)
	}

	defer func() {
		if e.counter != nil {
			label := string(outcome)
			if err != nil {
				label = "error"
			}
			e.counter.WithLabelValues(m.op, label).Inc()
		}
	}()

	key := lock.DriverReserveKey(driverID)
	token, ok, err := e.locks.Acquire(ctx, key, e.cfg.LockTTL)
	if err != nil {
		return OutcomeLockBusy, err
	}
	if !ok {
		e.logger.Debug("driver lock busy", logx.String("op", m.op), logx.String("driver_id", driverID))
		return OutcomeLockBusy, nil
	}
	defer e.unlock(ctx, key, token)

	var updated domain.Driver
	outcome, err = e.mutate(ctx, m, driverID, hooks, &updated)
	if err != nil || !outcome.Applied() {
		return outcome, err
	}

	e.refreshCaches(ctx, updated)
	e.logger.Info("driver capacity changed",
		logx.String("op", m.op),
		logx.String("driver_id", driverID),
		logx.Int("current_load", updated.CurrentLoad),
		logx.Int("max_capacity", updated.MaxCapacity),
		logx.String("status", string(updated.Status)),
		logx.Int64("version", updated.Version),
	)
	return OutcomeApplied, nil
}

func (e *Engine) mutate(ctx context.Context, m mutation, driverID string, hooks []TxHook, updated *domain.Driver) (Outcome, error) {
	txCtx, cancel := context.WithTimeout(ctx, e.cfg.TxTimeout)
	defer cancel()

	outcome := OutcomeRejected
	err := e.tx.WithTx(txCtx, func(tx dispatchtx.Repository) error {
		current, err := tx.GetDriverForUpdate(txCtx, driverID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("driver %q: %w", driverID, apperr.ErrNotFound)
		}

		next, ok := m.apply(*current)
		if !ok {
			e.logger.Debug("driver capacity change rejected",
				logx.String("op", m.op),
				logx.String("driver_id", driverID),
				logx.Int("current_load", current.CurrentLoad),
				logx.String("status", string(current.Status)),
			)
			return nil
		}

		version, err := tx.UpdateDriverLoad(txCtx, driverID, next.CurrentLoad, next.Status)
		if err != nil {
			return err
		}
		next.Version = version

		for _, hook := range hooks {
			if err := hook(txCtx, tx, next); err != nil {
				return err
			}
		}

		*updated = next
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return OutcomeRejected, err
	}
	return outcome, nil
}

func (e *Engine) unlock(ctx context.Context, key string, token lock.Token) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	if _, err := e.locks.Release(relCtx, key, token); err != nil {
		e.logger.Warn("driver lock release failed", logx.String("key", key), logx.Err(err))
	}
}

// refreshCaches updates advisory projections after a commit. Failures are logged only.
func (e *Engine) refreshCaches(ctx context.Context, d domain.Driver) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if e.capacity != nil {
		if _, err := e.capacity.Store(cctx, d.View(e.now())); err != nil {
			e.logger.Warn("capacity cache refresh failed", logx.String("driver_id", d.ID), logx.Err(err))
		}
	}
	if e.nearby != nil {
		if _, err := e.nearby.InvalidateAll(cctx); err != nil {
			e.logger.Warn("nearby cache invalidation failed", logx.Err(err))
		}
	}
}
