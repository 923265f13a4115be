// Package application exposes the index to its callers: event intake from the
// consumer adapter, direct reads and queries, and transport-initiated
// mutations that travel the same merge path as stream events.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/engine"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
)

type Service struct {
	logger *slog.Logger
	stores ports.Stores
	engine *engine.Engine
	nowFn  func() time.Time
}

type Dependencies struct {
	Logger *slog.Logger
	Stores ports.Stores
	Engine *engine.Engine
}

func NewService(deps Dependencies) *Service {
	return &Service{
		logger: deps.Logger,
		stores: deps.Stores,
		engine: deps.Engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Apply folds one event envelope into the index.
func (s *Service) Apply(ctx context.Context, env domain.Envelope) error {
	return s.engine.Apply(ctx, env)
}

// Subscribe streams post-commit changes of one entity kind.
func (s *Service) Subscribe(kind domain.EntityKind) (<-chan engine.Notification, func()) {
	return s.engine.Subscribe(kind)
}

func (s *Service) GetProcessInstance(ctx context.Context, id string) (*domain.ProcessInstance, error) {
	return s.stores.ProcessInstances.Get(ctx, id)
}

func (s *Service) GetUserTaskInstance(ctx context.Context, id string) (*domain.UserTaskInstance, error) {
	return s.stores.UserTasks.Get(ctx, id)
}

func (s *Service) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return s.stores.Jobs.Get(ctx, id)
}

// The query methods validate the spec against the kind's field schema and
// hand back a lazy cursor from the active backend.

func (s *Service) QueryProcessInstances(ctx context.Context, spec query.Spec) (*ports.Cursor[domain.ProcessInstance], error) {
	if err := query.ProcessInstances.ValidateSpec(spec); err != nil {
		return nil, err
	}
	return s.stores.ProcessInstances.Query(ctx, spec)
}

func (s *Service) QueryUserTaskInstances(ctx context.Context, spec query.Spec) (*ports.Cursor[domain.UserTaskInstance], error) {
	if err := query.UserTaskInstances.ValidateSpec(spec); err != nil {
		return nil, err
	}
	return s.stores.UserTasks.Query(ctx, spec)
}

func (s *Service) QueryJobs(ctx context.Context, spec query.Spec) (*ports.Cursor[domain.Job], error) {
	if err := query.Jobs.ValidateSpec(spec); err != nil {
		return nil, err
	}
	return s.stores.Jobs.Query(ctx, spec)
}

func (s *Service) UpsertProcessInstance(ctx context.Context, p domain.ProcessInstance) (domain.ProcessInstance, error) {
	p.Normalize()
	if p.LastUpdate.IsZero() {
		p.LastUpdate = domain.NormalizeTime(s.nowFn())
	}
	return s.engine.UpsertProcessInstance(ctx, p)
}

func (s *Service) UpsertUserTaskInstance(ctx context.Context, t domain.UserTaskInstance) (domain.UserTaskInstance, error) {
	t.Normalize()
	if t.LastUpdate.IsZero() {
		t.LastUpdate = domain.NormalizeTime(s.nowFn())
	}
	return s.engine.UpsertUserTaskInstance(ctx, t)
}

func (s *Service) UpsertJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	j.Normalize()
	if j.LastUpdate.IsZero() {
		j.LastUpdate = domain.NormalizeTime(s.nowFn())
	}
	return s.engine.UpsertJob(ctx, j)
}

func (s *Service) DeleteProcessInstance(ctx context.Context, id string) (bool, error) {
	return s.engine.DeleteProcessInstance(ctx, id)
}

func (s *Service) DeleteUserTaskInstance(ctx context.Context, id string) (bool, error) {
	return s.engine.DeleteUserTaskInstance(ctx, id)
}

func (s *Service) DeleteJob(ctx context.Context, id string) (bool, error) {
	return s.engine.DeleteJob(ctx, id)
}

// The nested-collection mutations below are transport-initiated: they travel
// through the merge engine as sequence-zero envelopes so they share the
// per-id critical section with stream events, but they require the owning
// task to already exist.

func (s *Service) AddComment(ctx context.Context, taskID string, c domain.Comment) (domain.UserTaskInstance, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldComments, Op: domain.OpAdd, ItemID: c.ID, Comment: &c,
	})
}

func (s *Service) UpdateComment(ctx context.Context, taskID string, c domain.Comment) (domain.UserTaskInstance, error) {
	if c.ID == "" {
		return domain.UserTaskInstance{}, fmt.Errorf("%w: comment update without id", domain.ErrSchemaViolation)
	}
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldComments, Op: domain.OpUpdate, ItemID: c.ID, Comment: &c,
	})
}

func (s *Service) RemoveComment(ctx context.Context, taskID, commentID string) (domain.UserTaskInstance, error) {
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldComments, Op: domain.OpRemove, ItemID: commentID,
	})
}

func (s *Service) AddAttachment(ctx context.Context, taskID string, a domain.Attachment) (domain.UserTaskInstance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldAttachments, Op: domain.OpAdd, ItemID: a.ID, Attachment: &a,
	})
}

func (s *Service) UpdateAttachment(ctx context.Context, taskID string, a domain.Attachment) (domain.UserTaskInstance, error) {
	if a.ID == "" {
		return domain.UserTaskInstance{}, fmt.Errorf("%w: attachment update without id", domain.ErrSchemaViolation)
	}
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldAttachments, Op: domain.OpUpdate, ItemID: a.ID, Attachment: &a,
	})
}

func (s *Service) RemoveAttachment(ctx context.Context, taskID, attachmentID string) (domain.UserTaskInstance, error) {
	return s.mutateTask(ctx, taskID, domain.CollectionOp{
		Field: domain.FieldAttachments, Op: domain.OpRemove, ItemID: attachmentID,
	})
}

func (s *Service) mutateTask(ctx context.Context, taskID string, op domain.CollectionOp) (domain.UserTaskInstance, error) {
	cur, err := s.stores.UserTasks.Get(ctx, taskID)
	if err != nil {
		return domain.UserTaskInstance{}, err
	}
	if cur == nil {
		return domain.UserTaskInstance{}, fmt.Errorf("%w: user task %q", domain.ErrNotFound, taskID)
	}
	env := domain.Envelope{
		EventID:       uuid.NewString(),
		Kind:          domain.KindUserTaskInstance,
		EntityID:      taskID,
		OccurredAt:    s.nowFn(),
		UserTask:      &domain.UserTaskInstanceChange{},
		CollectionOps: []domain.CollectionOp{op},
	}
	if err := s.engine.Apply(ctx, env); err != nil {
		return domain.UserTaskInstance{}, err
	}
	stored, err := s.stores.UserTasks.Get(ctx, taskID)
	if err != nil {
		return domain.UserTaskInstance{}, err
	}
	if stored == nil {
		return domain.UserTaskInstance{}, fmt.Errorf("%w: user task %q", domain.ErrNotFound, taskID)
	}
	return *stored, nil
}
