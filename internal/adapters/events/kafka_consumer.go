package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
)

// ConsumerConfig tunes the reader for the index's three entity streams.
// Events are small JSON documents, so the defaults favor low latency over
// batching: fetch as soon as one byte is available, wait at most half a
// second for more.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topics       []string
	MinBytes     int
	MaxBytes     int
	MaxWait      time.Duration
	FetchTimeout time.Duration
}

func (c *ConsumerConfig) applyDefaults() {
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 500 * time.Millisecond
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 250 * time.Millisecond
	}
}

// KafkaConsumer reads the process, user task and job event streams as one
// consumer group. Offsets are committed explicitly via Commit, never on
// fetch, so an event that fails transiently is redelivered once the group
// rebalances or the indexer restarts.
type KafkaConsumer struct {
	reader       *kafka.Reader
	fetchTimeout time.Duration
}

func NewKafkaConsumer(cfg ConsumerConfig) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("index event intake requires at least one kafka broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("index event intake requires a consumer group id")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("index event intake requires at least one entity stream topic")
	}
	cfg.applyDefaults()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
	})
	return &KafkaConsumer{reader: reader, fetchTimeout: cfg.FetchTimeout}, nil
}

// Poll fetches up to max messages without committing their offsets. Broker
// faults surface as ErrStorageUnavailable so the worker treats the bus like
// any other transiently failing collaborator.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]ports.Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]ports.Message, 0, max)
	for i := 0; i < max; i++ {
		fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return out, nil
			case errors.Is(err, context.Canceled):
				return out, ctx.Err()
			default:
				return out, fmt.Errorf("%w: fetch from broker: %v", domain.ErrStorageUnavailable, err)
			}
		}
		out = append(out, ports.Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Payload:   msg.Value,
		})
	}
	return out, nil
}

// Commit acknowledges one message. Committing an offset also commits every
// earlier offset on the same partition, so the worker must only commit in
// fetch order.
func (c *KafkaConsumer) Commit(ctx context.Context, msg ports.Message) error {
	err := c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
	if err != nil {
		return fmt.Errorf("%w: commit offset %d on %s/%d: %v",
			domain.ErrStorageUnavailable, msg.Offset, msg.Topic, msg.Partition, err)
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// NoopConsumer satisfies the consumer port when no brokers are configured,
// letting the runtime serve queries and direct mutations without an event
// source.
type NoopConsumer struct{}

func NewNoopConsumer() *NoopConsumer {
	return &NoopConsumer{}
}

func (n *NoopConsumer) Poll(_ context.Context, _ int) ([]ports.Message, error) {
	return nil, nil
}

func (n *NoopConsumer) Commit(_ context.Context, _ ports.Message) error {
	return nil
}
