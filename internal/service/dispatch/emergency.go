package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/ports/dispatchtx"
	"service-dispatcher/internal/service/reservation"
)

// detach holds what the release transaction learned about the delivery it unbound.
type detach struct {
	parcel    domain.ParcelStatus
	driverLoc domain.Location
	located   bool
}

// detachDelivery clears the delivery's driver and steps an assigned parcel back to pending.
func detachDelivery(deliveryID, driverID string, seen *detach) reservation.TxHook {
	return func(ctx context.Context, tx dispatchtx.Repository, driver domain.Driver) error {
		if driver.ID != "" {
			seen.driverLoc = driver.Location
			seen.located = true
		}

		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)
		}
		if d.DriverID != driverID {
			return fmt.Errorf("delivery %q is assigned to %q: %w", deliveryID, d.DriverID, apperr.ErrConflict)
		}
		if err := tx.SetDeliveryDriver(ctx, deliveryID, ""); err != nil {
			return err
		}

		p, err := tx.GetParcelForUpdate(ctx, d.ParcelID)
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		seen.parcel = p.Status
		if p.Status == domain.ParcelAssigned {
			return tx.SetParcelStatus(ctx, p.ID, domain.ParcelPending)
		}
		return nil
	}
}

// EmergencyReplace pulls a driver off an active delivery and finds a replacement.
// The old driver is always released. The replacement is searched around the old
// driver when the parcel is already on the road and around the pickup otherwise.
// Without a replacement the delivery is left unassigned, flagged for manual
// intervention and ErrNoDriverAvailable is returned, unless a concurrent pass
// assigned it meanwhile, in which case that driver id is returned.
func (s *Service) EmergencyReplace(ctx context.Context, oldDriverID, deliveryID, reason string) (newDriverID string, err error) {
	defer func() { s.count("emergency_replace", err) }()

	oldDriverID = strings.TrimSpace(oldDriverID)
	if oldDriverID == "" {
		return "", fmt.Errorf("%w: empty driver id", apperr.ErrInvalid)
	}
	current, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return "", err
	}
	if err := requireStarted(current); err != nil {
		return "", err
	}
	if current.DriverID != oldDriverID {
		return "", fmt.Errorf("delivery %q is assigned to %q, not %q: %w",
			current.ID, current.DriverID, oldDriverID, apperr.ErrConflict)
	}

	var seen detach
	if err := s.unbind(ctx, current.ID, oldDriverID, &seen); err != nil {
		return "", err
	}
	s.emit(ctx, domain.ActionReleased, current.ID, oldDriverID, "", reason)

	point := current.Pickup
	if seen.parcel == domain.ParcelInTransit && seen.located {
		point = seen.driverLoc
	}

	newDriverID, err = s.AssignOptimal(ctx, point, DeliveryContext{
		DeliveryID: current.ID,
		Priority:   current.Priority,
		Exclude:    []string{oldDriverID},
	})
	if err == nil {
		s.logger.Info("driver replaced",
			logx.String("delivery_id", current.ID),
			logx.String("old_driver_id", oldDriverID),
			logx.String("new_driver_id", newDriverID),
			logx.String("reason", reason),
		)
		s.emit(ctx, domain.ActionEmergencyReplaced, current.ID, newDriverID, oldDriverID, reason)
		return newDriverID, nil
	}

	manualReason := "emergency replacement failed: " + reason
	rivalID, markErr := s.markManual(ctx, current.ID, manualReason)
	if markErr != nil {
		s.logger.Error("mark manual intervention failed",
			logx.String("delivery_id", current.ID),
			logx.Err(markErr),
		)
		return "", errors.Join(err, markErr)
	}
	if rivalID != "" {
		s.logger.Info("delivery assigned concurrently during replacement",
			logx.String("delivery_id", current.ID),
			logx.String("old_driver_id", oldDriverID),
			logx.String("driver_id", rivalID),
		)
		return rivalID, nil
	}
	s.logger.Warn("delivery needs manual intervention",
		logx.String("delivery_id", current.ID),
		logx.String("old_driver_id", oldDriverID),
		logx.Err(err),
	)
	s.emit(ctx, domain.ActionManualIntervention, current.ID, "", oldDriverID, manualReason)

	if errors.Is(err, apperr.ErrNoDriverAvailable) {
		return "", err
	}
	return "", fmt.Errorf("%w: %w", apperr.ErrNoDriverAvailable, err)
}

// unbind releases the driver and detaches the delivery in one transaction.
func (s *Service) unbind(ctx context.Context, deliveryID, driverID string, seen *detach) error {
	released, err := s.releaseWith(ctx, driverID, deliveryID, detachDelivery(deliveryID, driverID, seen))
	if err != nil {
		return err
	}
	if !released {
		if drv, derr := s.reader.GetDriver(ctx, driverID); derr == nil && drv != nil {
			seen.driverLoc = drv.Location
			seen.located = true
		}
	}
	return nil
}

// markManual flags the delivery for manual intervention. When another pass
// has assigned it meanwhile nothing is flagged and that driver id is returned.
func (s *Service) markManual(ctx context.Context, deliveryID, reason string) (assignedTo string, err error) {
	ctx = context.WithoutCancel(ctx)
	err = s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)
		}
		if d.Assigned() {
			assignedTo = d.DriverID
			return nil
		}
		return tx.MarkDeliveryManual(ctx, deliveryID, reason)
	})
	if err != nil {
		return "", err
	}
	return assignedTo, nil
}
