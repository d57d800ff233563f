package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"service-dispatcher/internal/service/statusevents"
	testlog "service-dispatcher/internal/testutil"
)

type fakeGroup struct {
	consumes atomic.Int32
	err      error
	closed   atomic.Bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	g.consumes.Add(1)
	if g.err != nil {
		return g.err
	}
	<-ctx.Done()
	return nil
}

func (g *fakeGroup) Errors() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}

func (g *fakeGroup) Close() error {
	g.closed.Store(true)
	return nil
}

func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func TestNewConsumer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	got, err := NewConsumer(rec.Logger(), nil, "gid", "topic", func(context.Context, statusevents.Event) error { return nil })
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "", "topic", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "   ", nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestNilConsumer_RunAndClose(t *testing.T) {
	t.Parallel()

	var c *Consumer
	require.NoError(t, c.Run(context.Background()))
	require.NoError(t, c.Close())
}

func TestNewConsumer_ReturnsErrorWhenSaramaFails(t *testing.T) {
	orig := newConsumerGroup
	t.Cleanup(func() { newConsumerGroup = orig })

	sentinel := errors.New("boom")
	newConsumerGroup = func(_ []string, _ string, _ *sarama.Config) (sarama.ConsumerGroup, error) {
		return nil, sentinel
	}

	rec := testlog.New()
	got, err := NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "topic", nil)
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, got)
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	orig := newConsumerGroup
	t.Cleanup(func() { newConsumerGroup = orig })

	group := &fakeGroup{}
	newConsumerGroup = func(_ []string, _ string, cfg *sarama.Config) (sarama.ConsumerGroup, error) {
		require.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)
		return group, nil
	}

	c, err := NewConsumer(testlog.New().Logger(), []string{"b:9092"}, "gid", "topic", nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, c.Run(ctx), context.DeadlineExceeded)
	require.NoError(t, c.Close())
	require.True(t, group.closed.Load())
}

func TestConsumer_RunLogsConsumeErrors(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	group := &fakeGroup{err: errors.New("rebalance failed")}
	c := &Consumer{logger: rec.Logger(), group: group, topic: "topic"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, c.Run(ctx), context.DeadlineExceeded)
	require.GreaterOrEqual(t, group.consumes.Load(), int32(1))
	require.True(t, rec.Has("warn", "kafka consume error"))
}
