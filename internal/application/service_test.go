package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/viralforge/procindex/internal/adapters/memory"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/engine"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores := memory.NewStores(10)
	eng := engine.New(logger, stores, engine.NewNotifier(16), engine.Config{
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
	})
	return NewService(Dependencies{Logger: logger, Stores: stores, Engine: eng})
}

func seedTask(t *testing.T, svc *Service, id string) domain.UserTaskInstance {
	t.Helper()
	task, err := svc.UpsertUserTaskInstance(context.Background(), domain.UserTaskInstance{
		ID:    id,
		Name:  "Review order",
		State: "Ready",
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestUpsertStampsLastUpdate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	stored, err := svc.UpsertProcessInstance(context.Background(), domain.ProcessInstance{
		ID:    "p-1",
		State: domain.ProcessInstanceActive,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.LastUpdate.IsZero() {
		t.Fatal("LastUpdate not stamped on direct upsert")
	}
}

func TestAddCommentGeneratesIDAndPersists(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	seedTask(t, svc, "t-1")

	task, err := svc.AddComment(context.Background(), "t-1", domain.Comment{
		Content:   "check totals",
		UpdatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if len(task.Comments) != 1 {
		t.Fatalf("comment not persisted: %+v", task.Comments)
	}
	c := task.Comments[0]
	if c.ID == "" {
		t.Fatal("comment id not generated")
	}
	if c.UpdatedAt.IsZero() {
		t.Fatal("comment timestamp not stamped")
	}
	// A direct mutation must not regress the entity's sequence watermark.
	if task.LastSequence != 0 {
		t.Fatalf("local mutation moved the watermark: %d", task.LastSequence)
	}
}

func TestAddCommentOnMissingTask(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.AddComment(context.Background(), "t-missing", domain.Comment{Content: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCommentLifecycle(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	seedTask(t, svc, "t-1")

	task, err := svc.AddComment(ctx, "t-1", domain.Comment{ID: "c-1", Content: "v1", UpdatedBy: "alice"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	task, err = svc.UpdateComment(ctx, "t-1", domain.Comment{ID: "c-1", Content: "v2", UpdatedBy: "alice"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Comments[0].Content != "v2" {
		t.Fatalf("update not applied: %+v", task.Comments[0])
	}

	_, err = svc.UpdateComment(ctx, "t-1", domain.Comment{ID: "c-ghost", Content: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("updating missing comment: expected ErrNotFound, got %v", err)
	}
	_, err = svc.UpdateComment(ctx, "t-1", domain.Comment{Content: "no id"})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("update without id: expected ErrSchemaViolation, got %v", err)
	}

	task, err = svc.RemoveComment(ctx, "t-1", "c-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(task.Comments) != 0 {
		t.Fatalf("comment survived removal: %+v", task.Comments)
	}
	// Removing again is a no-op, not an error.
	if _, err := svc.RemoveComment(ctx, "t-1", "c-1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestAttachmentMutations(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	seedTask(t, svc, "t-1")

	task, err := svc.AddAttachment(ctx, "t-1", domain.Attachment{
		Name:      "invoice.pdf",
		Content:   "http://files/invoice.pdf",
		UpdatedBy: "bob",
	})
	if err != nil {
		t.Fatalf("add attachment: %v", err)
	}
	if len(task.Attachments) != 1 || task.Attachments[0].ID == "" {
		t.Fatalf("attachment not persisted: %+v", task.Attachments)
	}
	id := task.Attachments[0].ID

	task, err = svc.UpdateAttachment(ctx, "t-1", domain.Attachment{ID: id, Name: "invoice-v2.pdf"})
	if err != nil {
		t.Fatalf("update attachment: %v", err)
	}
	if task.Attachments[0].Name != "invoice-v2.pdf" {
		t.Fatalf("update not applied: %+v", task.Attachments[0])
	}

	task, err = svc.RemoveAttachment(ctx, "t-1", id)
	if err != nil {
		t.Fatalf("remove attachment: %v", err)
	}
	if len(task.Attachments) != 0 {
		t.Fatalf("attachment survived removal: %+v", task.Attachments)
	}
}

func TestMutationPreservesStreamWatermark(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	// The task arrives from the stream with a watermark; a local mutation
	// must keep it so later stream events are still deduplicated correctly.
	env := domain.Envelope{
		Kind:       domain.KindUserTaskInstance,
		EntityID:   "t-1",
		Sequence:   6,
		OccurredAt: time.Now(),
		UserTask:   &domain.UserTaskInstanceChange{Name: ptr("Review")},
	}
	if err := svc.Apply(ctx, env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	task, err := svc.AddComment(ctx, "t-1", domain.Comment{Content: "local"})
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if task.LastSequence != 6 {
		t.Fatalf("local mutation changed watermark: %d", task.LastSequence)
	}
}

func TestQueryValidatesBeforeBackend(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.QueryJobs(context.Background(), query.Spec{
		Filter: query.Equal{Field: "nosuch", Value: 1},
	})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestQueryReturnsMatches(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"j-1", "j-2"} {
		if _, err := svc.UpsertJob(ctx, domain.Job{ID: id, Status: domain.JobScheduled}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if _, err := svc.UpsertJob(ctx, domain.Job{ID: "j-3", Status: domain.JobCanceled}); err != nil {
		t.Fatalf("upsert j-3: %v", err)
	}

	cursor, err := svc.QueryJobs(ctx, query.Spec{
		Filter: query.Equal{Field: "status", Value: string(domain.JobScheduled)},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	jobs, err := ports.Collect(ctx, cursor)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 scheduled jobs, got %d", len(jobs))
	}
}

func TestQueryTasksByProcessInstance(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	for i, pid := range []string{"p-1", "p-1", "p-2"} {
		env := domain.Envelope{
			Kind:       domain.KindUserTaskInstance,
			EntityID:   string(rune('a' + i)),
			Sequence:   1,
			OccurredAt: time.Now(),
			UserTask:   &domain.UserTaskInstanceChange{ProcessInstanceID: ptr(pid)},
		}
		if err := svc.Apply(ctx, env); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	cursor, err := svc.QueryUserTaskInstances(ctx, query.Spec{
		Filter: query.Equal{Field: "processInstanceId", Value: "p-1"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	tasks, err := ports.Collect(ctx, cursor)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for p-1, got %d", len(tasks))
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.UpsertProcessInstance(ctx, domain.ProcessInstance{ID: "p-1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	existed, err := svc.DeleteProcessInstance(ctx, "p-1")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	got, err := svc.GetProcessInstance(ctx, "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("entity survived delete: %+v", got)
	}
}

func ptr(s string) *string { return &s }
