package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/service/reservation"
)

func requireStarted(d *domain.Delivery) error {
	if d.Status != domain.DeliveryStarted {
		return fmt.Errorf("delivery %q is %s: %w", d.ID, d.Status, apperr.ErrInvalidTransition)
	}
	return nil
}

// AssignDelivery finds and reserves a driver for an unassigned delivery.
// When nobody can take it the delivery stays pending and ErrNoDriverAvailable is returned.
func (s *Service) AssignDelivery(ctx context.Context, deliveryID string) (d domain.Delivery, err error) {
	defer func() { s.count("assign", err) }()

	current, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if err := requireStarted(current); err != nil {
		return domain.Delivery{}, err
	}
	if current.Assigned() {
		return domain.Delivery{}, fmt.Errorf("delivery %q is assigned to %q: %w",
			current.ID, current.DriverID, apperr.ErrConflict)
	}

	driverID, err := s.AssignOptimal(ctx, current.Pickup, DeliveryContext{
		DeliveryID: current.ID,
		Priority:   current.Priority,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNoDriverAvailable) {
			s.logger.Info("delivery left pending",
				logx.String("delivery_id", current.ID),
				logx.String("reason", err.Error()),
			)
		}
		return domain.Delivery{}, err
	}

	s.emit(ctx, domain.ActionAssigned, current.ID, driverID, "", "")
	return s.reload(ctx, current, driverID)
}

// AssignToDriver puts the delivery on a chosen driver without scoring.
// A delivery already on another driver is only moved when force is set. The new
// driver is reserved first; the previous one is released only after that succeeded.
func (s *Service) AssignToDriver(ctx context.Context, deliveryID, driverID string, force bool) (d domain.Delivery, err error) {
	defer func() { s.count("assign_manual", err) }()

	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return domain.Delivery{}, fmt.Errorf("%w: empty driver id", apperr.ErrInvalid)
	}
	current, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if err := requireStarted(current); err != nil {
		return domain.Delivery{}, err
	}
	if current.DriverID == driverID {
		return *current, nil
	}
	previous := current.DriverID
	if previous != "" && !force {
		return domain.Delivery{}, fmt.Errorf("delivery %q is assigned to %q: %w",
			current.ID, previous, apperr.ErrConflict)
	}

	out, err := s.reserver.Reserve(ctx, driverID, bindDelivery(current.ID, previous))
	if err != nil {
		var be *bindError
		if errors.As(err, &be) {
			return domain.Delivery{}, be.err
		}
		return domain.Delivery{}, err
	}
	switch out {
	case reservation.OutcomeLockBusy:
		return domain.Delivery{}, fmt.Errorf("driver %q: %w", driverID, errLockBusy)
	case reservation.OutcomeRejected:
		return domain.Delivery{}, fmt.Errorf("driver %q has no spare capacity: %w", driverID, apperr.ErrConflict)
	}

	if previous == "" {
		s.emit(ctx, domain.ActionAssigned, current.ID, driverID, "", "manual")
		return s.reload(ctx, current, driverID)
	}

	s.releasePrevious(ctx, previous, current.ID)
	s.emit(ctx, domain.ActionReassigned, current.ID, driverID, previous, "manual")
	return s.reload(ctx, current, driverID)
}

// releasePrevious gives back the capacity of a driver the delivery moved away from.
// The move is already committed, so a failure here is only logged.
func (s *Service) releasePrevious(ctx context.Context, driverID, deliveryID string) {
	out, err := s.releaseDriver(context.WithoutCancel(ctx), driverID)
	switch {
	case err != nil:
		s.logger.Error("previous driver release failed",
			logx.String("driver_id", driverID),
			logx.String("delivery_id", deliveryID),
			logx.Err(err),
		)
	case !out.Applied():
		s.logger.Warn("previous driver had no load to release",
			logx.String("driver_id", driverID),
			logx.String("delivery_id", deliveryID),
		)
	default:
		s.emit(ctx, domain.ActionReleased, deliveryID, driverID, "", "reassigned")
	}
}

// reload returns the committed delivery, falling back to the known state on a read failure.
func (s *Service) reload(ctx context.Context, known *domain.Delivery, driverID string) (domain.Delivery, error) {
	d, err := s.reader.GetDelivery(ctx, known.ID)
	if err != nil || d == nil {
		out := *known
		out.DriverID = driverID
		out.NeedsManual = false
		out.ManualReason = ""
		return out, nil
	}
	return *d, nil
}
