package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-dispatcher/internal/logx"
	testlog "service-dispatcher/internal/testutil"
)

type fakeJob struct {
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeJob) Start() error {
	f.started = true
	return f.startErr
}

func (f *fakeJob) Stop() { f.stopped = true }

func TestWorkerRunner_MustRun_NoPanicOnNil(t *testing.T) {
	r := &WorkerRunner{runFn: func(*dig.Container) error { return nil }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRunner_MustRun_NoPanicOnCanceled(t *testing.T) {
	r := &WorkerRunner{runFn: func(*dig.Container) error { return context.Canceled }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRunner_MustRun_PanicsOnOtherError(t *testing.T) {
	sentinel := errors.New("boom")
	r := &WorkerRunner{runFn: func(*dig.Container) error { return sentinel }}
	require.Panics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRun_ReturnsError_WhenJobNil(t *testing.T) {
	err := workerRun(context.Background(), logx.Nop(), nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pending assignment job is nil")
}

func TestWorkerRun_ReturnsStartError(t *testing.T) {
	job := &fakeJob{startErr: errors.New("bad schedule")}

	err := workerRun(context.Background(), logx.Nop(), nil, job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad schedule")
	require.False(t, job.stopped)
}

func TestWorkerRun_WithoutConsumer_RunsJobUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := testlog.New()
	job := &fakeJob{}

	err := workerRun(ctx, rec.Logger(), nil, job)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, job.started)
	require.True(t, job.stopped)
	require.True(t, rec.Has("warn", "kafka consumer disabled, running pending assignment job only"))
}
