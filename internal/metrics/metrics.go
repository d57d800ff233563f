package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewReservationsTotal returns a counter of reservation engine calls by operation and outcome
func NewReservationsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_reservations_total",
		Help: "Total number of driver reserve/release attempts by outcome",
	}, []string{"op", "outcome"})
}

// NewAssignmentsTotal returns a counter of orchestrator assignments by operation and result
func NewAssignmentsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of delivery assignment attempts by result",
	}, []string{"op", "result"})
}

// NewRetriesTotal returns a counter of retry attempts performed by bounded retry loops
func NewRetriesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_retries_total",
		Help: "Total number of retry attempts performed by bounded retry loops",
	}, []string{"op"})
}

// NewEventsDroppedTotal returns a counter of dispatch events that could not be published
func NewEventsDroppedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_events_dropped_total",
		Help: "Total number of dispatch events dropped by the fire-and-forget emitter",
	})
}

// NewStatusEventsTotal returns a counter of consumed delivery status events by type and result
func NewStatusEventsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_status_events_total",
		Help: "Total number of consumed delivery status events by type and result",
	}, []string{"type", "result"})
}
