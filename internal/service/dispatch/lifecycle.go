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

type parcelStep func(from domain.ParcelStatus) (domain.ParcelStatus, error)

func completeParcel(from domain.ParcelStatus) (domain.ParcelStatus, error) {
	return domain.ParcelDelivered, domain.CheckParcelTransition(from, domain.ParcelDelivered)
}

// cancelParcel cancels a parcel that has not left yet and returns one that has.
func cancelParcel(from domain.ParcelStatus) (domain.ParcelStatus, error) {
	if from == domain.ParcelInTransit {
		return domain.ParcelReturned, nil
	}
	return domain.ParcelCancelled, domain.CheckParcelTransition(from, domain.ParcelCancelled)
}

// finishDelivery moves the delivery to a terminal status and its parcel along with it.
func finishDelivery(deliveryID, expectedDriver string, to domain.DeliveryStatus, step parcelStep) reservation.TxHook {
	return func(ctx context.Context, tx dispatchtx.Repository, _ domain.Driver) error {
		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)
		}
		if err := domain.CheckDeliveryTransition(d.Status, to); err != nil {
			return err
		}
		if d.DriverID != expectedDriver {
			return fmt.Errorf("delivery %q moved to driver %q: %w", deliveryID, d.DriverID, apperr.ErrConflict)
		}

		p, err := tx.GetParcelForUpdate(ctx, d.ParcelID)
		if err != nil {
			return err
		}
		if p != nil {
			next, err := step(p.Status)
			if err != nil {
				return err
			}
			if err := tx.SetParcelStatus(ctx, p.ID, next); err != nil {
				return err
			}
		}
		return tx.SetDeliveryStatus(ctx, deliveryID, to)
	}
}

// releaseWith releases the driver with hook in the same transaction. When there is
// no load to give back, or the driver is gone, hook still runs in a plain transaction.
// released reports whether capacity was returned.
func (s *Service) releaseWith(ctx context.Context, driverID, deliveryID string, hook reservation.TxHook) (released bool, err error) {
	out, err := s.releaseDriver(ctx, driverID, hook)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if err == nil && out.Applied() {
		return true, nil
	}

	s.logger.Warn("driver had no load to release",
		logx.String("driver_id", driverID),
		logx.String("delivery_id", deliveryID),
	)
	err = s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return hook(ctx, tx, domain.Driver{})
	})
	return false, err
}

func (s *Service) finish(ctx context.Context, deliveryID string, to domain.DeliveryStatus, step parcelStep) (*domain.Delivery, error) {
	current, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDeliveryTransition(current.Status, to); err != nil {
		return nil, err
	}

	hook := finishDelivery(current.ID, current.DriverID, to, step)
	if current.DriverID == "" {
		err = s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
			return hook(ctx, tx, domain.Driver{})
		})
	} else {
		_, err = s.releaseWith(ctx, current.DriverID, current.ID, hook)
	}
	if err != nil {
		return nil, err
	}

	out, err := s.reader.GetDelivery(ctx, current.ID)
	if err != nil || out == nil {
		out = current
		out.Status = to
	}
	return out, nil
}

// CompleteDelivery closes a delivery whose parcel is on the road and frees its driver.
// The status change and the driver release commit together.
func (s *Service) CompleteDelivery(ctx context.Context, deliveryID string) (d domain.Delivery, err error) {
	defer func() { s.count("complete", err) }()

	out, err := s.finish(ctx, deliveryID, domain.DeliveryCompleted, completeParcel)
	if err != nil {
		return domain.Delivery{}, err
	}
	s.emit(ctx, domain.ActionCompleted, out.ID, out.DriverID, "", "")
	return *out, nil
}

// CancelDelivery cancels a delivery and frees its driver in the same transaction.
// A parcel already on the road is marked returned, otherwise cancelled.
func (s *Service) CancelDelivery(ctx context.Context, deliveryID, reason string) (d domain.Delivery, err error) {
	defer func() { s.count("cancel", err) }()

	out, err := s.finish(ctx, deliveryID, domain.DeliveryCancelled, cancelParcel)
	if err != nil {
		return domain.Delivery{}, err
	}
	s.emit(ctx, domain.ActionCancelled, out.ID, out.DriverID, "", reason)
	return *out, nil
}

// MarkInTransit records that the assigned driver picked the parcel up.
func (s *Service) MarkInTransit(ctx context.Context, deliveryID string) (domain.Parcel, error) {
	current, err := s.loadDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Parcel{}, err
	}
	if err := requireStarted(current); err != nil {
		return domain.Parcel{}, err
	}

	var out domain.Parcel
	err = s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %q: %w", current.ID, apperr.ErrNotFound)
		}
		if !d.Assigned() {
			return fmt.Errorf("delivery %q has no driver: %w", d.ID, apperr.ErrConflict)
		}
		p, err := setParcelStatus(ctx, tx, d.ParcelID, domain.ParcelInTransit)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	if err != nil {
		return domain.Parcel{}, err
	}
	return out, nil
}

// UpdateParcelStatus applies an externally reported parcel status change.
func (s *Service) UpdateParcelStatus(ctx context.Context, parcelID string, status domain.ParcelStatus) (domain.Parcel, error) {
	parcelID = strings.TrimSpace(parcelID)
	if parcelID == "" {
		return domain.Parcel{}, fmt.Errorf("%w: empty parcel id", apperr.ErrInvalid)
	}
	if !status.Valid() {
		return domain.Parcel{}, fmt.Errorf("%w: unknown parcel status %q", apperr.ErrInvalid, status)
	}

	var out domain.Parcel
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		p, err := setParcelStatus(ctx, tx, parcelID, status)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	if err != nil {
		return domain.Parcel{}, err
	}
	return out, nil
}

func setParcelStatus(ctx context.Context, tx dispatchtx.Repository, parcelID string, to domain.ParcelStatus) (*domain.Parcel, error) {
	p, err := tx.GetParcelForUpdate(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("parcel %q: %w", parcelID, apperr.ErrNotFound)
	}
	if err := domain.CheckParcelTransition(p.Status, to); err != nil {
		return nil, err
	}
	if err := tx.SetParcelStatus(ctx, p.ID, to); err != nil {
		return nil, err
	}
	p.Status = to
	return p, nil
}
