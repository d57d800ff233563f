package domain

import (
	"fmt"

	"service-dispatcher/internal/apperr"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStarted: {DeliveryCompleted, DeliveryCancelled},
}

var parcelTransitions = map[ParcelStatus][]ParcelStatus{
	ParcelPending:   {ParcelAssigned, ParcelInTransit, ParcelCancelled},
	ParcelAssigned:  {ParcelInTransit, ParcelCancelled, ParcelPending},
	ParcelInTransit: {ParcelDelivered, ParcelReturned, ParcelLost},
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Entity, e.From, e.To)
}

// Unwrap lets errors.Is match apperr.ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return apperr.ErrInvalidTransition }

// Terminal reports whether no transition leaves the status.
func (s DeliveryStatus) Terminal() bool {
	return len(deliveryTransitions[s]) == 0
}

// Terminal reports whether no transition leaves the status.
func (s ParcelStatus) Terminal() bool {
	return len(parcelTransitions[s]) == 0
}

// CheckDeliveryTransition returns a *TransitionError if from -> to is not allowed.
func CheckDeliveryTransition(from, to DeliveryStatus) error {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Entity: "delivery", From: string(from), To: string(to)}
}

// CheckParcelTransition returns a *TransitionError if from -> to is not allowed.
func CheckParcelTransition(from, to ParcelStatus) error {
	for _, next := range parcelTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Entity: "parcel", From: string(from), To: string(to)}
}
