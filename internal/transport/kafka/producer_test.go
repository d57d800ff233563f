package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/events"
	"service-dispatcher/internal/metrics"
	"service-dispatcher/internal/retry"
	testlog "service-dispatcher/internal/testutil"
)

var _ events.Emitter = (*Producer)(nil)

func mockConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	return cfg
}

func TestNewProducer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	got, err := NewProducer(context.Background(), nil, nil, "events", nil, retry.Policy{})
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewProducer(context.Background(), nil, []string{"b:9092"}, " ", nil, retry.Policy{})
	require.NoError(t, err)
	require.Nil(t, got)

	got.Emit(context.Background(), events.New(domain.ActionAssigned, "L1", "D1"))
	require.NoError(t, got.Close())
}

func TestNewProducer_RetriesStartup(t *testing.T) {
	orig := newAsyncProducer
	t.Cleanup(func() { newAsyncProducer = orig })

	calls := 0
	newAsyncProducer = func(_ []string, _ *sarama.Config) (sarama.AsyncProducer, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("brokers not ready")
		}
		return mocks.NewAsyncProducer(t, mockConfig()), nil
	}

	p, err := NewProducer(context.Background(), testlog.New().Logger(), []string{"b:9092"}, "events", nil,
		retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, 3, calls)
	require.NoError(t, p.Close())
}

func TestNewProducer_GivesUp(t *testing.T) {
	orig := newAsyncProducer
	t.Cleanup(func() { newAsyncProducer = orig })

	sentinel := errors.New("brokers not ready")
	newAsyncProducer = func([]string, *sarama.Config) (sarama.AsyncProducer, error) {
		return nil, sentinel
	}

	p, err := NewProducer(context.Background(), nil, []string{"b:9092"}, "events", nil,
		retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, p)
}

func TestProducer_EmitPublishesJSON(t *testing.T) {
	t.Parallel()

	mp := mocks.NewAsyncProducer(t, mockConfig())
	ev := events.New(domain.ActionAssigned, "L1", "D1")
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got domain.DispatchEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ID != ev.ID || got.Action != domain.ActionAssigned || got.DriverID != "D1" {
			return fmt.Errorf("unexpected event %+v", got)
		}
		return nil
	})

	dropped := metrics.NewEventsDroppedTotal()
	p := newProducer(testlog.New().Logger(), mp, "events", dropped)
	p.Emit(context.Background(), ev)

	require.NoError(t, p.Close())
	require.Equal(t, 0.0, testutil.ToFloat64(dropped))
}

func TestProducer_DeliveryFailureIsCounted(t *testing.T) {
	t.Parallel()

	mp := mocks.NewAsyncProducer(t, mockConfig())
	mp.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	rec := testlog.New()
	dropped := metrics.NewEventsDroppedTotal()
	p := newProducer(rec.Logger(), mp, "events", dropped)
	p.Emit(context.Background(), events.New(domain.ActionReleased, "L1", "D1"))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(dropped) == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, rec.Has("warn", "kafka publish failed"))

	_ = p.Close()
}

type stuckProducer struct {
	sarama.AsyncProducer
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newStuckProducer() *stuckProducer {
	return &stuckProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError),
	}
}

func (s *stuckProducer) Input() chan<- *sarama.ProducerMessage { return s.input }
func (s *stuckProducer) Errors() <-chan *sarama.ProducerError  { return s.errors }
func (s *stuckProducer) Close() error {
	close(s.errors)
	return nil
}

func TestProducer_FullQueueDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	dropped := metrics.NewEventsDroppedTotal()
	p := newProducer(testlog.New().Logger(), newStuckProducer(), "events", dropped)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			p.Emit(context.Background(), events.New(domain.ActionAssigned, "L1", "D1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	require.Equal(t, 3.0, testutil.ToFloat64(dropped))
	require.NoError(t, p.Close())
}

func TestProducer_EmitAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	dropped := metrics.NewEventsDroppedTotal()
	p := newProducer(testlog.New().Logger(), newStuckProducer(), "events", dropped)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p.Emit(context.Background(), events.New(domain.ActionAssigned, "L1", "D1"))
	require.Equal(t, 1.0, testutil.ToFloat64(dropped))
}
