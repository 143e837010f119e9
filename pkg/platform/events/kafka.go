package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher emits decision events to a Kafka topic through a buffered
// channel and a single producing goroutine. When the buffer is full the
// event is dropped rather than blocking the decision path; Close drains
// whatever is buffered.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger

	events    chan DecisionEvent
	done      chan struct{}
	closeOnce sync.Once
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithBuffer sets the async buffer size (default 256).
func WithBuffer(size int) KafkaOption {
	return func(p *KafkaPublisher) {
		if size > 0 {
			p.events = make(chan DecisionEvent, size)
		}
	}
}

// WithKafkaLogger attaches a structured logger.
func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	p := &KafkaPublisher{
		client: client,
		topic:  topic,
		logger: slog.Default(),
		events: make(chan DecisionEvent, 256),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run()
	return p, nil
}

// ensureTopic creates the topic when it does not exist yet, so a fresh
// deployment works without manual broker setup.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("ensure topic %q: %w", topic, res.Err)
		}
	}
	return nil
}

// Emit enqueues the event. A full buffer drops the event and logs; the
// decision path must never block on Kafka.
func (p *KafkaPublisher) Emit(ctx context.Context, event DecisionEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "decision event dropped, buffer full",
			"transaction_id", event.TransactionID,
		)
		return nil
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for event := range p.events {
		p.produce(event)
	}
}

func (p *KafkaPublisher) produce(event DecisionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal decision event", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TransactionID),
		Value: payload,
	}
	p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce decision event",
				"transaction_id", event.TransactionID,
				"error", err,
			)
		}
	})
}

// Close drains buffered events, flushes in-flight produces, and releases
// the client.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.events)
	})
	<-p.done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Error("flush decision events", "error", err)
	}
	p.client.Close()
	return nil
}
