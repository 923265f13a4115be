// Package storagetest holds the shared conformance suite every storage
// adapter must pass. Backend test packages construct their stores and hand a
// factory to RunStorageTests; the suite then exercises the full contract so
// behavior stays identical across relational, document and in-memory
// backends.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
)

// StoresFactory returns a fresh, empty Stores per subtest.
type StoresFactory func(t *testing.T) ports.Stores

func RunStorageTests(t *testing.T, name string, factory StoresFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("GetMiss", func(t *testing.T) {
			testGetMiss(t, factory(t))
		})
		t.Run("UpsertRoundTrip", func(t *testing.T) {
			testUpsertRoundTrip(t, factory(t))
		})
		t.Run("UpsertOverwrites", func(t *testing.T) {
			testUpsertOverwrites(t, factory(t))
		})
		t.Run("NestedCollectionsRoundTrip", func(t *testing.T) {
			testNestedCollections(t, factory(t))
		})
		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})
		t.Run("QueryEqual", func(t *testing.T) {
			testQueryEqual(t, factory(t))
		})
		t.Run("QueryEmptyIn", func(t *testing.T) {
			testQueryEmptyIn(t, factory(t))
		})
		t.Run("QueryRangeInclusive", func(t *testing.T) {
			testQueryRangeInclusive(t, factory(t))
		})
		t.Run("QueryIsNull", func(t *testing.T) {
			testQueryIsNull(t, factory(t))
		})
		t.Run("QueryUnknownField", func(t *testing.T) {
			testQueryUnknownField(t, factory(t))
		})
		t.Run("QueryOrderAndLimit", func(t *testing.T) {
			testQueryOrderAndLimit(t, factory(t))
		})
		t.Run("QueryPagination", func(t *testing.T) {
			testQueryPagination(t, factory(t))
		})
	})
}

func sampleProcess(id string) domain.ProcessInstance {
	start := domain.NormalizeTime(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	return domain.ProcessInstance{
		ID:          id,
		ProcessID:   "orders",
		ProcessName: "Order Fulfilment",
		Version:     "1.0",
		State:       domain.ProcessInstanceActive,
		BusinessKey: "BK-" + id,
		Endpoint:    "http://orders/" + id,
		Roles:       []string{"employee"},
		Variables:   []byte(`{"total":42}`),
		StartedAt:   &start,
		LastUpdate:  start,
	}
}

func testGetMiss(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	got, err := stores.ProcessInstances.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get miss: unexpected error %v", err)
	}
	if got != nil {
		t.Fatalf("get miss: expected nil, got %+v", got)
	}
}

func testUpsertRoundTrip(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	want := sampleProcess("p-1")
	stored, err := stores.ProcessInstances.Upsert(ctx, want)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.ID != want.ID {
		t.Fatalf("upsert returned id %q, want %q", stored.ID, want.ID)
	}
	got, err := stores.ProcessInstances.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: entity vanished after upsert")
	}
	if got.ProcessName != want.ProcessName || got.BusinessKey != want.BusinessKey {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(*want.StartedAt) {
		t.Fatalf("start timestamp mismatch: got %v want %v", got.StartedAt, want.StartedAt)
	}
	if !got.LastUpdate.Equal(want.LastUpdate) {
		t.Fatalf("lastUpdate mismatch: got %v want %v", got.LastUpdate, want.LastUpdate)
	}
	if string(got.Variables) != string(want.Variables) {
		t.Fatalf("variables mismatch: got %s want %s", got.Variables, want.Variables)
	}
}

func testUpsertOverwrites(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	first := sampleProcess("p-1")
	if _, err := stores.ProcessInstances.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := first
	second.State = domain.ProcessInstanceCompleted
	second.LastSequence = 7
	if _, err := stores.ProcessInstances.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err := stores.ProcessInstances.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.ProcessInstanceCompleted || got.LastSequence != 7 {
		t.Fatalf("overwrite not visible: got %+v", got)
	}
}

func testNestedCollections(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	now := domain.NormalizeTime(time.Now())
	task := domain.UserTaskInstance{
		ID:                "t-1",
		ProcessInstanceID: "p-1",
		ProcessID:         "orders",
		Name:              "Review order",
		State:             "Ready",
		Comments: []domain.Comment{
			{ID: "c-1", Content: "looks fine", UpdatedBy: "alice", UpdatedAt: now},
			{ID: "c-2", Content: "double-check totals", UpdatedBy: "bob", UpdatedAt: now},
		},
		Attachments: []domain.Attachment{
			{ID: "a-1", Name: "invoice.pdf", Content: "http://files/invoice.pdf", UpdatedBy: "alice", UpdatedAt: now},
		},
		LastUpdate: now,
	}
	if _, err := stores.UserTasks.Upsert(ctx, task); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := stores.UserTasks.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("task vanished after upsert")
	}
	if len(got.Comments) != 2 || len(got.Attachments) != 1 {
		t.Fatalf("nested collections lost: %d comments, %d attachments", len(got.Comments), len(got.Attachments))
	}
	if got.Comments[0].ID != "c-1" || got.Comments[1].Content != "double-check totals" {
		t.Fatalf("comment content mismatch: %+v", got.Comments)
	}
	if !got.Comments[0].UpdatedAt.Equal(now) {
		t.Fatalf("comment timestamp mismatch: got %v want %v", got.Comments[0].UpdatedAt, now)
	}
	if got.Attachments[0].Name != "invoice.pdf" {
		t.Fatalf("attachment mismatch: %+v", got.Attachments)
	}
}

func testDelete(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	if _, err := stores.ProcessInstances.Upsert(ctx, sampleProcess("p-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	existed, err := stores.ProcessInstances.Delete(ctx, "p-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatal("delete reported miss for existing id")
	}
	got, err := stores.ProcessInstances.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("entity survived delete: %+v", got)
	}
	existed, err = stores.ProcessInstances.Delete(ctx, "p-1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatal("second delete reported an existing id")
	}
}

func seedProcesses(t *testing.T, stores ports.Stores, n int) {
	t.Helper()
	ctx := context.Background()
	base := domain.NormalizeTime(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	for i := 0; i < n; i++ {
		p := sampleProcess(fmt.Sprintf("p-%03d", i))
		start := base.Add(time.Duration(i) * time.Minute)
		p.StartedAt = &start
		p.LastUpdate = start
		if i%2 == 1 {
			p.State = domain.ProcessInstanceCompleted
			end := start.Add(30 * time.Second)
			p.EndedAt = &end
		}
		if _, err := stores.ProcessInstances.Upsert(ctx, p); err != nil {
			t.Fatalf("seed upsert %d: %v", i, err)
		}
	}
}

func collectProcesses(t *testing.T, stores ports.Stores, spec query.Spec) []domain.ProcessInstance {
	t.Helper()
	ctx := context.Background()
	cursor, err := stores.ProcessInstances.Query(ctx, spec)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	out, err := ports.Collect(ctx, cursor)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return out
}

func testQueryEqual(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 6)
	got := collectProcesses(t, stores, query.Spec{
		Filter: query.Equal{Field: "state", Value: string(domain.ProcessInstanceCompleted)},
	})
	if len(got) != 3 {
		t.Fatalf("equal filter: got %d results, want 3", len(got))
	}
	for _, p := range got {
		if p.State != domain.ProcessInstanceCompleted {
			t.Fatalf("equal filter leaked state %q", p.State)
		}
	}
}

func testQueryEmptyIn(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 4)
	got := collectProcesses(t, stores, query.Spec{
		Filter: query.In{Field: "state", Values: nil},
	})
	if len(got) != 0 {
		t.Fatalf("empty In matched %d entities, want 0", len(got))
	}
}

func testQueryRangeInclusive(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 5)
	base := domain.NormalizeTime(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	// Bounds land exactly on the timestamps of p-001 and p-003; both must be
	// included.
	got := collectProcesses(t, stores, query.Spec{
		Filter: query.Range{
			Field: "start",
			Lo:    base.Add(1 * time.Minute),
			Hi:    base.Add(3 * time.Minute),
		},
	})
	if len(got) != 3 {
		t.Fatalf("range filter: got %d results, want 3", len(got))
	}
	if got[0].ID != "p-001" || got[2].ID != "p-003" {
		t.Fatalf("range bounds not inclusive: got %q..%q", got[0].ID, got[len(got)-1].ID)
	}
}

func testQueryIsNull(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 6)
	got := collectProcesses(t, stores, query.Spec{
		Filter: query.IsNull{Field: "end"},
	})
	if len(got) != 3 {
		t.Fatalf("isNull filter: got %d results, want 3", len(got))
	}
	for _, p := range got {
		if p.EndedAt != nil {
			t.Fatalf("isNull matched entity with end set: %q", p.ID)
		}
	}
}

func testQueryUnknownField(t *testing.T, stores ports.Stores) {
	ctx := context.Background()
	_, err := stores.ProcessInstances.Query(ctx, query.Spec{
		Filter: query.Equal{Field: "nosuchfield", Value: "x"},
	})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("unknown field: got %v, want ErrUnsupportedFilter", err)
	}
}

func testQueryOrderAndLimit(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 8)
	got := collectProcesses(t, stores, query.Spec{
		Order: &query.Order{Field: "start", Descending: true},
		Limit: 3,
	})
	if len(got) != 3 {
		t.Fatalf("limit not honored: got %d results", len(got))
	}
	if got[0].ID != "p-007" || got[2].ID != "p-005" {
		t.Fatalf("descending order broken: %q, %q, %q", got[0].ID, got[1].ID, got[2].ID)
	}
}

func testQueryPagination(t *testing.T, stores ports.Stores) {
	seedProcesses(t, stores, 25)
	ctx := context.Background()
	cursor, err := stores.ProcessInstances.Query(ctx, query.Spec{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer cursor.Close()
	seen := make(map[string]bool)
	prev := ""
	for {
		p, ok, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		if seen[p.ID] {
			t.Fatalf("cursor yielded %q twice", p.ID)
		}
		seen[p.ID] = true
		if p.ID <= prev {
			t.Fatalf("default ordering broken: %q after %q", p.ID, prev)
		}
		prev = p.ID
	}
	if len(seen) != 25 {
		t.Fatalf("cursor yielded %d entities, want 25", len(seen))
	}
}
