package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/storagetest"
)

func TestMemoryStorageConformance(t *testing.T) {
	t.Parallel()

	storagetest.RunStorageTests(t, "memory", func(t *testing.T) ports.Stores {
		// Small pages force the cursor across page boundaries.
		return NewStores(10)
	})
}

func TestUpsertWithoutIDFails(t *testing.T) {
	t.Parallel()

	stores := NewStores(0)
	_, err := stores.Jobs.Upsert(context.Background(), domain.Job{})
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestReturnedEntityIsIsolatedFromStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := NewStores(0)
	task := domain.UserTaskInstance{
		ID:       "t-1",
		Comments: []domain.Comment{{ID: "c-1", Content: "original"}},
	}
	if _, err := stores.UserTasks.Upsert(ctx, task); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first, _ := stores.UserTasks.Get(ctx, "t-1")
	first.Comments[0].Content = "mutated by caller"

	second, _ := stores.UserTasks.Get(ctx, "t-1")
	if second.Comments[0].Content != "original" {
		t.Fatalf("caller mutation leaked into store: %+v", second.Comments[0])
	}
}
