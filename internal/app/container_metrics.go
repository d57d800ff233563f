package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatcher/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter     `name:"rate_limit_exceeded_total"`
	EventsDroppedTotal     prometheus.Counter     `name:"events_dropped_total"`
	ReservationsTotal      *prometheus.CounterVec `name:"reservations_total"`
	AssignmentsTotal       *prometheus.CounterVec `name:"assignments_total"`
	RetriesTotal           *prometheus.CounterVec `name:"retries_total"`
	StatusEventsTotal      *prometheus.CounterVec `name:"status_events_total"`
}

// register adds c to reg, reusing the collector already registered under the same name.
func register[T prometheus.Collector](reg prometheus.Registerer, name string, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register %s: %w", name, err)
}

func provideMetrics() (metricsOut, error) {
	reg := prometheus.DefaultRegisterer
	var (
		out metricsOut
		err error
	)
	if out.RateLimitExceededTotal, err = register(reg, "rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.EventsDroppedTotal, err = register(reg, "events_dropped_total", metrics.NewEventsDroppedTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.ReservationsTotal, err = register(reg, "reservations_total", metrics.NewReservationsTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.AssignmentsTotal, err = register(reg, "assignments_total", metrics.NewAssignmentsTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.RetriesTotal, err = register(reg, "retries_total", metrics.NewRetriesTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.StatusEventsTotal, err = register(reg, "status_events_total", metrics.NewStatusEventsTotal()); err != nil {
		return metricsOut{}, err
	}
	return out, nil
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container,
		provideMetrics,
		func() prometheus.Gatherer { return prometheus.DefaultGatherer },
	)
}

// retryObserver counts retry attempts of op.
func retryObserver(retries *prometheus.CounterVec, op string) func(int, time.Duration, error) {
	return func(int, time.Duration, error) {
		if retries != nil {
			retries.WithLabelValues(op).Inc()
		}
	}
}
