// Package engine implements the merge/upsert core: it folds partial domain
// events into stored entities with per-id serialization, idempotent
// at-least-once semantics and bounded retry on transient storage faults,
// then fans post-commit change notifications out to subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
)

var (
	eventsApplied   = metrics.GetOrCreateCounter(`procindex_events_applied_total`)
	eventsDiscarded = metrics.GetOrCreateCounter(`procindex_events_discarded_total`)
	eventsRejected  = metrics.GetOrCreateCounter(`procindex_events_rejected_total`)
	retryAttempts   = metrics.GetOrCreateCounter(`procindex_upsert_retries_total`)
)

type Config struct {
	// MaxAttempts bounds upsert tries on transient faults; at least 1.
	MaxAttempts          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

type Engine struct {
	cfg      Config
	logger   *slog.Logger
	stores   ports.Stores
	locks    *keyedLocks
	notifier *Notifier
	nowFn    func() time.Time
}

func New(logger *slog.Logger, stores ports.Stores, notifier *Notifier, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 50 * time.Millisecond
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 2 * time.Second
	}
	if notifier == nil {
		notifier = NewNotifier(0)
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		stores:   stores,
		locks:    newKeyedLocks(),
		notifier: notifier,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe streams post-commit changes of one entity kind. Delivery is
// best-effort with a bounded buffer; see Notifier.
func (e *Engine) Subscribe(kind domain.EntityKind) (<-chan Notification, func()) {
	return e.notifier.Subscribe(kind)
}

// Apply merges one event envelope into the index. Duplicates and stale
// redeliveries are discarded without error; schema violations, missing
// nested items and exhausted retries surface as typed errors for the event
// source to act on. Events for the same entity id are serialized, distinct
// ids run in parallel.
func (e *Engine) Apply(ctx context.Context, env domain.Envelope) error {
	if err := env.Validate(); err != nil {
		eventsRejected.Inc()
		return err
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = e.nowFn()
	}
	env.OccurredAt = domain.NormalizeTime(env.OccurredAt)

	unlock := e.locks.Lock(lockKey(env.Kind, env.EntityID))
	defer unlock()

	switch env.Kind {
	case domain.KindProcessInstance:
		return applyOne(e, ctx, e.stores.ProcessInstances, env,
			func(p *domain.ProcessInstance) uint64 { return p.LastSequence }, mergeProcessInstance)
	case domain.KindUserTaskInstance:
		return applyOne(e, ctx, e.stores.UserTasks, env,
			func(t *domain.UserTaskInstance) uint64 { return t.LastSequence }, mergeUserTaskInstance)
	case domain.KindJob:
		return applyOne(e, ctx, e.stores.Jobs, env,
			func(j *domain.Job) uint64 { return j.LastSequence }, mergeJob)
	default:
		eventsRejected.Inc()
		return fmt.Errorf("%w: unknown entity kind %q", domain.ErrSchemaViolation, env.Kind)
	}
}

// UpsertProcessInstance writes a full entity through the per-id critical
// section, for transport-initiated mutations that bypass the event stream.
func (e *Engine) UpsertProcessInstance(ctx context.Context, p domain.ProcessInstance) (domain.ProcessInstance, error) {
	return upsertDirect(e, ctx, e.stores.ProcessInstances, domain.KindProcessInstance, p.ID, p)
}

func (e *Engine) UpsertUserTaskInstance(ctx context.Context, t domain.UserTaskInstance) (domain.UserTaskInstance, error) {
	return upsertDirect(e, ctx, e.stores.UserTasks, domain.KindUserTaskInstance, t.ID, t)
}

func (e *Engine) UpsertJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	return upsertDirect(e, ctx, e.stores.Jobs, domain.KindJob, j.ID, j)
}

// DeleteProcessInstance removes the entity inside its per-id critical section
// so a delete never interleaves with a concurrent merge. Reports whether the
// id existed.
func (e *Engine) DeleteProcessInstance(ctx context.Context, id string) (bool, error) {
	return deleteOne(e, ctx, e.stores.ProcessInstances, domain.KindProcessInstance, id)
}

func (e *Engine) DeleteUserTaskInstance(ctx context.Context, id string) (bool, error) {
	return deleteOne(e, ctx, e.stores.UserTasks, domain.KindUserTaskInstance, id)
}

func (e *Engine) DeleteJob(ctx context.Context, id string) (bool, error) {
	return deleteOne(e, ctx, e.stores.Jobs, domain.KindJob, id)
}

func applyOne[T any](
	e *Engine,
	ctx context.Context,
	store ports.Storage[T],
	env domain.Envelope,
	seqOf func(*T) uint64,
	merge func(*T, domain.Envelope) (T, error),
) error {
	cur, err := store.Get(ctx, env.EntityID)
	if err != nil {
		return fmt.Errorf("load %s %q: %w", env.Kind, env.EntityID, err)
	}
	// Sequence zero marks locally originated envelopes; they skip the
	// watermark check and never regress it.
	if cur != nil && env.Sequence > 0 && env.Sequence <= seqOf(cur) {
		eventsDiscarded.Inc()
		e.logger.DebugContext(ctx, "stale event discarded",
			"module", "engine",
			"operation", "apply",
			"kind", string(env.Kind),
			"entity_id", env.EntityID,
			"event_sequence", env.Sequence,
			"stored_sequence", seqOf(cur),
		)
		return nil
	}
	next, err := merge(cur, env)
	if err != nil {
		eventsRejected.Inc()
		return err
	}
	stored, err := persist(e, ctx, store, env, next)
	if err != nil {
		return err
	}
	eventsApplied.Inc()
	e.notifier.Publish(Notification{Kind: env.Kind, EntityID: env.EntityID, Entity: stored})
	return nil
}

func deleteOne[T any](
	e *Engine,
	ctx context.Context,
	store ports.Storage[T],
	kind domain.EntityKind,
	id string,
) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: %s without id", domain.ErrSchemaViolation, kind)
	}
	unlock := e.locks.Lock(lockKey(kind, id))
	defer unlock()
	return store.Delete(ctx, id)
}

func upsertDirect[T any](
	e *Engine,
	ctx context.Context,
	store ports.Storage[T],
	kind domain.EntityKind,
	id string,
	entity T,
) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: %s without id", domain.ErrSchemaViolation, kind)
	}
	unlock := e.locks.Lock(lockKey(kind, id))
	defer unlock()

	stored, err := persist(e, ctx, store, domain.Envelope{Kind: kind, EntityID: id}, entity)
	if err != nil {
		return zero, err
	}
	e.notifier.Publish(Notification{Kind: kind, EntityID: id, Entity: stored})
	return stored, nil
}

// persist writes with jittered exponential backoff on transient faults.
// Permanent faults abort immediately; exhaustion surfaces as
// ErrPersistenceFailed and the event stays with the source for redelivery.
func persist[T any](e *Engine, ctx context.Context, store ports.Storage[T], env domain.Envelope, next T) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryInitialInterval
	bo.MaxInterval = e.cfg.RetryMaxInterval

	var stored T
	attempt := 0
	op := func() error {
		attempt++
		var err error
		stored, err = store.Upsert(ctx, next)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrStorageUnavailable) {
			retryAttempts.Inc()
			e.logger.WarnContext(ctx, "upsert failed, will retry",
				"module", "engine",
				"operation", "persist",
				"kind", string(env.Kind),
				"entity_id", env.EntityID,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.MaxAttempts-1)), ctx))
	if err == nil {
		return stored, nil
	}
	var zero T
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return zero, fmt.Errorf("%w: %s %q after %d attempts: %v",
			domain.ErrPersistenceFailed, env.Kind, env.EntityID, attempt, err)
	}
	return zero, fmt.Errorf("persist %s %q: %w", env.Kind, env.EntityID, err)
}

func lockKey(kind domain.EntityKind, id string) string {
	return string(kind) + "/" + id
}
