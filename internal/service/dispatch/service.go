// Package dispatch picks drivers for deliveries and keeps delivery, parcel and
// driver capacity consistent while doing so.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/events"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/ports/dispatchtx"
	"service-dispatcher/internal/retry"
	"service-dispatcher/internal/service/finder"
	"service-dispatcher/internal/service/reservation"
)

// Config bounds a dispatch walk.
type Config struct {
	SearchRadiusMeters float64
	CandidateLimit     int
	MaxAttempts        int
	WalkTimeout        time.Duration
	// Release retries a driver release that keeps hitting a busy lock.
	Release retry.Policy
}

// DefaultConfig returns the walk limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		SearchRadiusMeters: 5000,
		CandidateLimit:     5,
		MaxAttempts:        5,
		WalkTimeout:        2 * time.Second,
		Release: retry.Policy{
			MaxAttempts: 5,
			BaseDelay:   20 * time.Millisecond,
			MaxDelay:    200 * time.Millisecond,
		},
	}
}

var errLockBusy = fmt.Errorf("driver lock busy: %w", apperr.ErrTooMuchContention)

// Service is the dispatch orchestrator.
type Service struct {
	reserver reserver
	finder   candidateFinder
	reader   reader
	tx       dispatchtx.Runner
	scorer   Scorer
	emitter  events.Emitter
	cfg      Config
	logger   logx.Logger
	counter  *prometheus.CounterVec
}

// NewService creates a new Service. counter may be nil.
func NewService(
	res reserver,
	f candidateFinder,
	r reader,
	tx dispatchtx.Runner,
	scorer Scorer,
	emitter events.Emitter,
	cfg Config,
	logger logx.Logger,
	counter *prometheus.CounterVec,
) *Service {
	def := DefaultConfig()
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = def.SearchRadiusMeters
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WalkTimeout <= 0 {
		cfg.WalkTimeout = def.WalkTimeout
	}
	if cfg.Release.MaxAttempts <= 0 {
		onRetry := cfg.Release.OnRetry
		cfg.Release = def.Release
		cfg.Release.OnRetry = onRetry
	}
	cfg.Release.Retryable = func(err error) bool { return errors.Is(err, errLockBusy) }

	if emitter == nil {
		emitter = events.Nop()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		reserver: res,
		finder:   f,
		reader:   r,
		tx:       tx,
		scorer:   scorer,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger,
		counter:  counter,
	}
}

// DeliveryContext carries what the walk needs to know about the delivery being placed.
type DeliveryContext struct {
	// DeliveryID, when set, is bound to the winning driver inside its reservation.
	DeliveryID string
	Priority   domain.Priority
	ZoneID     string
	Exclude    []string
}

// bindError marks a failure of the delivery side of a reservation.
// Such failures end the walk instead of moving to the next candidate.
type bindError struct{ err error }

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

// AssignOptimal reserves the best available driver around pickup and returns its id.
// Ranking only orders the attempts; a reservation decides who wins.
func (s *Service) AssignOptimal(ctx context.Context, pickup domain.Location, dc DeliveryContext) (string, error) {
	walkCtx, cancel := context.WithTimeout(ctx, s.cfg.WalkTimeout)
	defer cancel()

	candidates, err := s.finder.FindAvailable(walkCtx, finder.Query{
		Location:     pickup,
		RadiusMeters: s.cfg.SearchRadiusMeters,
		Limit:        s.cfg.CandidateLimit,
		ZoneID:       dc.ZoneID,
		Exclude:      dc.Exclude,
	})
	if err != nil {
		return "", err
	}

	ranked := s.scorer.Rank(candidates, dc.Priority)
	var hooks []reservation.TxHook
	if dc.DeliveryID != "" {
		hooks = append(hooks, bindDelivery(dc.DeliveryID, ""))
	}

walk:
	for i, c := range ranked {
		if i >= s.cfg.MaxAttempts || walkCtx.Err() != nil {
			break
		}

		out, err := s.reserver.Reserve(walkCtx, c.Driver.ID, hooks...)
		var be *bindError
		switch {
		case errors.As(err, &be):
			return "", be.err
		case errors.Is(err, apperr.ErrNotFound):
			s.logger.Debug("candidate vanished", logx.String("driver_id", c.Driver.ID))
		case err != nil && walkCtx.Err() != nil && ctx.Err() == nil:
			// walk deadline hit mid-reservation
			break walk
		case err != nil:
			return "", err
		case out.Applied():
			s.logger.Info("driver reserved",
				logx.String("driver_id", c.Driver.ID),
				logx.String("delivery_id", dc.DeliveryID),
				logx.Int("rank", i+1),
				logx.Float64("score", c.Score),
				logx.Float64("distance_meters", c.DistanceMeters),
			)
			return c.Driver.ID, nil
		default:
			s.logger.Debug("candidate skipped",
				logx.String("driver_id", c.Driver.ID),
				logx.String("outcome", string(out)),
			)
		}
	}

	return "", fmt.Errorf("%d candidates near (%.5f, %.5f): %w",
		len(ranked), pickup.Lat, pickup.Lng, apperr.ErrNoDriverAvailable)
}

// bindDelivery points the delivery at the reserved driver inside the reservation transaction.
// expectedDriver is the driver the delivery must still reference; empty means unassigned.
func bindDelivery(deliveryID, expectedDriver string) reservation.TxHook {
	return func(ctx context.Context, tx dispatchtx.Repository, driver domain.Driver) error {
		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return &bindError{err: err}
		}
		if d == nil {
			return &bindError{err: fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)}
		}
		if d.Status != domain.DeliveryStarted {
			return &bindError{err: fmt.Errorf("delivery %q is %s: %w",
				deliveryID, d.Status, apperr.ErrInvalidTransition)}
		}
		if d.DriverID != expectedDriver {
			return &bindError{err: fmt.Errorf("delivery %q is assigned to %q: %w",
				deliveryID, d.DriverID, apperr.ErrConflict)}
		}

		if err := tx.SetDeliveryDriver(ctx, deliveryID, driver.ID); err != nil {
			return &bindError{err: err}
		}

		p, err := tx.GetParcelForUpdate(ctx, d.ParcelID)
		if err != nil {
			return &bindError{err: err}
		}
		if p != nil && p.Status == domain.ParcelPending {
			if err := tx.SetParcelStatus(ctx, p.ID, domain.ParcelAssigned); err != nil {
				return &bindError{err: err}
			}
		}
		return nil
	}
}

// releaseDriver returns one unit of capacity, retrying while the driver's lock is busy.
func (s *Service) releaseDriver(ctx context.Context, driverID string, hooks ...reservation.TxHook) (reservation.Outcome, error) {
	var outcome reservation.Outcome
	policy := s.cfg.Release
	observe := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.Debug("release retry",
			logx.String("driver_id", driverID),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
		)
		if observe != nil {
			observe(attempt, delay, err)
		}
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		out, err := s.reserver.Release(ctx, driverID, hooks...)
		if err != nil {
			return err
		}
		if out == reservation.OutcomeLockBusy {
			return errLockBusy
		}
		outcome = out
		return nil
	})
	return outcome, err
}

func (s *Service) loadDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty delivery id", apperr.ErrInvalid)
	}
	d, err := s.reader.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	return d, nil
}

func (s *Service) emit(ctx context.Context, action domain.EventAction, deliveryID, driverID, previous, reason string) {
	ev := events.New(action, deliveryID, driverID)
	ev.PreviousDriverID = previous
	ev.Reason = reason
	s.emitter.Emit(context.WithoutCancel(ctx), ev)
}

func (s *Service) count(op string, err error) {
	if s.counter == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, apperr.ErrNoDriverAvailable):
		result = "no_driver"
	case err != nil:
		result = "error"
	}
	s.counter.WithLabelValues(op, result).Inc()
}
