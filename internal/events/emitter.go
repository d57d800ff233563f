// Package events fans dispatch events out to notification and audit consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
)

// Emitter publishes dispatch events. Emit never blocks the caller on a slow consumer
// and never reports failures back: events are advisory.
type Emitter interface {
	Emit(ctx context.Context, ev domain.DispatchEvent)
}

// New fills the event id and timestamp.
func New(action domain.EventAction, deliveryID, driverID string) domain.DispatchEvent {
	return domain.DispatchEvent{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Action:     action,
		At:         time.Now().UTC(),
	}
}

type nopEmitter struct{}

// Nop returns an Emitter that discards events.
func Nop() Emitter { return nopEmitter{} }

func (nopEmitter) Emit(context.Context, domain.DispatchEvent) {}

// LogEmitter writes events to the structured log.
type LogEmitter struct {
	logger logx.Logger
}

// NewLogEmitter creates a new LogEmitter.
func NewLogEmitter(logger logx.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Emit logs the event at info level.
func (e *LogEmitter) Emit(_ context.Context, ev domain.DispatchEvent) {
	e.logger.Info("dispatch event",
		logx.String("event_id", ev.ID),
		logx.String("action", string(ev.Action)),
		logx.String("delivery_id", ev.DeliveryID),
		logx.String("driver_id", ev.DriverID),
		logx.String("previous_driver_id", ev.PreviousDriverID),
		logx.String("reason", ev.Reason),
	)
}

// Multi sends every event to each emitter in order.
type Multi []Emitter

// Emit forwards ev to all emitters.
func (m Multi) Emit(ctx context.Context, ev domain.DispatchEvent) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}
