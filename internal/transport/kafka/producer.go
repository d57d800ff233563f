package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/retry"
)

var newAsyncProducer = sarama.NewAsyncProducer

// Producer publishes dispatch events to Kafka without blocking the caller.
// Events that cannot be queued or delivered are dropped and counted.
type Producer struct {
	logger   logx.Logger
	producer sarama.AsyncProducer
	topic    string
	dropped  prometheus.Counter

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewProducer connects to the brokers, retrying per policy. It returns nil when Kafka
// is not configured. dropped may be nil.
func NewProducer(ctx context.Context, logger logx.Logger, brokers []string, topic string, dropped prometheus.Counter, policy retry.Policy) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	var ap sarama.AsyncProducer
	err := retry.Do(ctx, policy, func(context.Context) error {
		var err error
		ap, err = newAsyncProducer(brokers, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newProducer(logger, ap, topic, dropped), nil
}

func newProducer(logger logx.Logger, ap sarama.AsyncProducer, topic string, dropped prometheus.Counter) *Producer {
	p := &Producer{
		logger:   logger.With(logx.String("topic", topic)),
		producer: ap,
		topic:    topic,
		dropped:  dropped,
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *Producer) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.drop()
		p.logger.Warn("kafka publish failed", logx.Err(perr.Err))
	}
}

// Emit queues ev keyed by delivery id. It never blocks.
func (p *Producer) Emit(_ context.Context, ev domain.DispatchEvent) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.drop()
		p.logger.Warn("dispatch event encode failed", logx.String("event_id", ev.ID), logx.Err(err))
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.DeliveryID),
		Value: sarama.ByteEncoder(payload),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop()
		return
	}
	select {
	case p.producer.Input() <- msg:
	default:
		p.drop()
		p.logger.Debug("kafka producer queue full, event dropped", logx.String("event_id", ev.ID))
	}
}

func (p *Producer) drop() {
	if p.dropped != nil {
		p.dropped.Inc()
	}
}

// Close flushes buffered events and stops the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	<-p.done
	return err
}
