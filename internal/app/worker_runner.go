package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"service-dispatcher/internal/jobs"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/transport/kafka"
)

// WorkerRunner runs the status event consumer and the pending assignment job
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun blocks until the worker stops and panics on unexpected errors
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

// pendingJob is the scheduled pass over unassigned deliveries.
type pendingJob interface {
	Start() error
	Stop()
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafka.Producer
	Consumer *kafka.Consumer
	Job      *jobs.PendingAssignmentJob
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		defer closeResources(in.Logger, in.Pool, in.Redis, in.Producer)
		return workerRun(in.Ctx, in.Logger, in.Consumer, in.Job)
	})
}

func workerRun(ctx context.Context, logger logx.Logger, consumer *kafka.Consumer, job pendingJob) error {
	if job == nil {
		return fmt.Errorf("pending assignment job is nil: worker container misconfigured")
	}
	if err := job.Start(); err != nil {
		return fmt.Errorf("start pending assignment job: %w", err)
	}
	defer job.Stop()

	logger.Info("service-dispatcher-worker started")
	if consumer == nil {
		logger.Warn("kafka consumer disabled, running pending assignment job only")
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("kafka consumer close error", logx.Err(err))
		}
	}()
	return consumer.Run(ctx)
}
