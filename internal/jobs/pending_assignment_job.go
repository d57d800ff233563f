// Package jobs holds scheduled background work of the dispatcher worker.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
)

type pendingSource interface {
	ListPendingDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error)
}

type assigner interface {
	AssignDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error)
}

// Result summarizes one pass over pending deliveries.
type Result struct {
	Scanned  int
	Assigned int
	NoDriver int
	Failed   int
}

// PendingAssignmentJob retries assignment of deliveries that are started, have no
// driver and are not flagged for manual intervention.
type PendingAssignmentJob struct {
	source   pendingSource
	assigner assigner
	schedule string
	batch    int
	timeout  time.Duration
	cron     *cron.Cron
	logger   logx.Logger

	mu      sync.Mutex
	running bool
}

// NewPendingAssignmentJob creates a new job. schedule uses the standard cron syntax
// with descriptors such as "@every 10s".
func NewPendingAssignmentJob(source pendingSource, a assigner, schedule string, batch int, logger logx.Logger) *PendingAssignmentJob {
	if logger == nil {
		logger = logx.Nop()
	}
	if batch <= 0 {
		batch = 50
	}
	return &PendingAssignmentJob{
		source:   source,
		assigner: a,
		schedule: schedule,
		batch:    batch,
		timeout:  time.Minute,
		cron:     cron.New(),
		logger:   logger.With(logx.String("component", "pending_assignment_job")),
	}
}

// Start schedules the job.
func (j *PendingAssignmentJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, j.tick)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("pending assignment job started", logx.String("schedule", j.schedule))
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (j *PendingAssignmentJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("pending assignment job stopped")
}

func (j *PendingAssignmentJob) tick() {
	// A slow pass must not overlap with the next one.
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Debug("pending assignment pass still running, skipping tick")
		return
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	res, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Error("pending assignment pass failed", logx.Err(err))
		return
	}
	if res.Scanned > 0 {
		j.logger.Info("pending assignment pass done",
			logx.Int("scanned", res.Scanned),
			logx.Int("assigned", res.Assigned),
			logx.Int("no_driver", res.NoDriver),
			logx.Int("failed", res.Failed),
		)
	}
}

// RunOnce assigns up to one batch of pending deliveries. Per-delivery failures are
// counted, not returned; only a failed listing is an error.
func (j *PendingAssignmentJob) RunOnce(ctx context.Context) (Result, error) {
	pending, err := j.source.ListPendingDeliveries(ctx, j.batch)
	if err != nil {
		return Result{}, err
	}

	res := Result{Scanned: len(pending)}
	for _, d := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		_, err := j.assigner.AssignDelivery(ctx, d.ID)
		switch {
		case err == nil:
			res.Assigned++
		case errors.Is(err, apperr.ErrNoDriverAvailable):
			res.NoDriver++
		case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidTransition):
			// assigned or finished by someone else since the listing
		default:
			res.Failed++
			j.logger.Warn("pending assignment failed", logx.String("delivery_id", d.ID), logx.Err(err))
		}
	}
	return res, nil
}
