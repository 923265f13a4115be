package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/procindex/internal/application"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
)

// ConsumerWorker drains the event source on a fixed tick and feeds each
// message through the indexing service. Topic names select the entity kind;
// messages on unknown topics are dropped with a warning.
type ConsumerWorker struct {
	logger   *slog.Logger
	consumer ports.Consumer
	service  *application.Service
	topics   map[string]domain.EntityKind
	interval time.Duration
	batch    int
}

func NewConsumerWorker(
	logger *slog.Logger,
	consumer ports.Consumer,
	service *application.Service,
	topics map[string]domain.EntityKind,
	interval time.Duration,
) *ConsumerWorker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ConsumerWorker{
		logger:   logger,
		consumer: consumer,
		service:  service,
		topics:   topics,
		interval: interval,
		batch:    50,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processOnce drains one batch. Each message is committed only after it
// reaches a final state: applied, or rejected for a reason redelivery cannot
// cure (malformed payload, missing referenced item). A transient failure
// leaves the message uncommitted and stops the batch there, since committing
// any later offset on the partition would implicitly commit the failed one;
// the bus redelivers from the last committed offset.
func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, w.batch)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		kind, ok := w.topics[msg.Topic]
		if !ok {
			w.logger.WarnContext(ctx, "message on unmapped topic dropped",
				"module", "events.consumer_worker",
				"topic", msg.Topic,
			)
			if err := w.consumer.Commit(ctx, msg); err != nil {
				return err
			}
			continue
		}
		if applyErr := w.apply(ctx, kind, msg.Payload); applyErr != nil {
			if isFinal(applyErr) {
				w.logger.WarnContext(ctx, "event rejected",
					"module", "events.consumer_worker",
					"topic", msg.Topic,
					"kind", string(kind),
					"error", applyErr,
				)
			} else {
				w.logger.ErrorContext(ctx, "event apply failed, leaving message uncommitted",
					"module", "events.consumer_worker",
					"topic", msg.Topic,
					"kind", string(kind),
					"error", applyErr,
				)
				return nil
			}
		}
		if err := w.consumer.Commit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *ConsumerWorker) apply(ctx context.Context, kind domain.EntityKind, payload []byte) error {
	env, err := DecodeEnvelope(kind, payload)
	if err != nil {
		return err
	}
	return w.service.Apply(ctx, env)
}

// isFinal reports whether redelivering the event could change the outcome.
// Malformed payloads and updates to missing nested items fail the same way
// every time; everything else is worth another delivery.
func isFinal(err error) bool {
	return errors.Is(err, domain.ErrSchemaViolation) || errors.Is(err, domain.ErrNotFound)
}
