// Package statusevents turns upstream delivery status events into dispatch operations.
package statusevents

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
)

// Processor handles delivery status events.
// Replays of already applied events are acknowledged without error.
type Processor struct {
	dispatch DispatchPort
	creator  DeliveryCreator
	factory  *actionFactory
	logger   logx.Logger
	counter  *prometheus.CounterVec
}

// NewProcessor creates a new Processor. counter may be nil.
func NewProcessor(dispatch DispatchPort, creator DeliveryCreator, logger logx.Logger, counter *prometheus.CounterVec) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatch: dispatch,
		creator:  creator,
		logger:   logger,
		counter:  counter,
	}
	p.factory = newActionFactory(p.onCreated, p.onPickedUp, p.onCompleted, p.onCancelled, p.onDriverOutage)
	return p
}

// Handle processes a single Event.
func (p *Processor) Handle(ctx context.Context, e Event) (err error) {
	fn, ok := p.factory.get(e.Type)
	if !ok {
		p.logger.Debug("status event ignored", logx.String("type", e.Type), logx.String("delivery_id", e.DeliveryID))
		p.count(e.Type, "ignored")
		return nil
	}

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		p.count(e.Type, result)
	}()
	return fn(ctx, e)
}

func (p *Processor) count(eventType, result string) {
	if p.counter != nil {
		p.counter.WithLabelValues(eventType, result).Inc()
	}
}

// settled reports errors that mean the event was already applied or cannot apply anymore.
func (p *Processor) settled(e Event, err error, benign ...error) error {
	for _, b := range benign {
		if errors.Is(err, b) {
			p.logger.Info("status event settled",
				logx.String("type", e.Type),
				logx.String("delivery_id", e.DeliveryID),
				logx.String("reason", err.Error()),
			)
			return nil
		}
	}
	return err
}

func (p *Processor) onCreated(ctx context.Context, e Event) error {
	if e.ParcelID == "" {
		return fmt.Errorf("%w: created event without parcel_id", apperr.ErrInvalid)
	}
	if err := e.Pickup.Validate(); err != nil {
		return err
	}

	_, err := p.creator.CreateDelivery(ctx, domain.Delivery{
		ID:       e.DeliveryID,
		ParcelID: e.ParcelID,
		Priority: e.Priority,
		Pickup:   e.Pickup,
	})
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return err
	}

	_, err = p.dispatch.AssignDelivery(ctx, e.DeliveryID)
	// No driver leaves the delivery pending for the retry job.
	return p.settled(e, err, apperr.ErrNoDriverAvailable, apperr.ErrConflict, apperr.ErrInvalidTransition)
}

func (p *Processor) onPickedUp(ctx context.Context, e Event) error {
	_, err := p.dispatch.MarkInTransit(ctx, e.DeliveryID)
	return p.settled(e, err, apperr.ErrInvalidTransition)
}

func (p *Processor) onCompleted(ctx context.Context, e Event) error {
	_, err := p.dispatch.CompleteDelivery(ctx, e.DeliveryID)
	return p.settled(e, err, apperr.ErrInvalidTransition)
}

func (p *Processor) onCancelled(ctx context.Context, e Event) error {
	_, err := p.dispatch.CancelDelivery(ctx, e.DeliveryID, e.Reason)
	return p.settled(e, err, apperr.ErrInvalidTransition)
}

func (p *Processor) onDriverOutage(ctx context.Context, e Event) error {
	if e.DriverID == "" {
		return fmt.Errorf("%w: driver_outage event without driver_id", apperr.ErrInvalid)
	}
	reason := e.Reason
	if reason == "" {
		reason = TypeDriverOutage
	}
	_, err := p.dispatch.EmergencyReplace(ctx, e.DriverID, e.DeliveryID, reason)
	// Without a replacement the delivery is already flagged for manual handling.
	return p.settled(e, err, apperr.ErrNoDriverAvailable, apperr.ErrConflict, apperr.ErrInvalidTransition)
}
