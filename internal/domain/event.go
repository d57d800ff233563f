package domain

import "time"

// EventAction names what happened to a delivery or driver.
type EventAction string

// List of dispatch event actions
const (
	ActionReserved           EventAction = "reserved"
	ActionReleased           EventAction = "released"
	ActionAssigned           EventAction = "assigned"
	ActionReassigned         EventAction = "reassigned"
	ActionEmergencyReplaced  EventAction = "emergency_replaced"
	ActionManualIntervention EventAction = "manual_intervention"
	ActionCompleted          EventAction = "completed"
	ActionCancelled          EventAction = "cancelled"
)

// DispatchEvent is published for notification and audit consumers.
type DispatchEvent struct {
	ID               string      `json:"id"`
	DeliveryID       string      `json:"delivery_id,omitempty"`
	DriverID         string      `json:"driver_id,omitempty"`
	PreviousDriverID string      `json:"previous_driver_id,omitempty"`
	Action           EventAction `json:"action"`
	Reason           string      `json:"reason,omitempty"`
	At               time.Time   `json:"at"`
}
