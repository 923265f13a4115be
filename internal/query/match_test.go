package query

import (
	"errors"
	"testing"
	"time"

	"github.com/viralforge/procindex/internal/domain"
)

func ts(min int) time.Time {
	return time.Date(2026, 3, 14, 9, min, 0, 0, time.UTC)
}

func activeProcess(id string, start time.Time) domain.ProcessInstance {
	return domain.ProcessInstance{
		ID:        id,
		ProcessID: "orders",
		State:     domain.ProcessInstanceActive,
		StartedAt: &start,
	}
}

func TestMatchesEqualAndIn(t *testing.T) {
	t.Parallel()

	p := activeProcess("p-1", ts(0))
	ok, err := ProcessInstances.Matches(p, Equal{Field: "state", Value: "ACTIVE"})
	if err != nil || !ok {
		t.Fatalf("equal: ok=%v err=%v", ok, err)
	}
	ok, err = ProcessInstances.Matches(p, Equal{Field: "state", Value: "COMPLETED"})
	if err != nil || ok {
		t.Fatalf("equal mismatch: ok=%v err=%v", ok, err)
	}
	ok, err = ProcessInstances.Matches(p, In{Field: "processId", Values: []any{"claims", "orders"}})
	if err != nil || !ok {
		t.Fatalf("in: ok=%v err=%v", ok, err)
	}
	ok, err = ProcessInstances.Matches(p, In{Field: "processId", Values: nil})
	if err != nil || ok {
		t.Fatalf("empty in must match nothing: ok=%v err=%v", ok, err)
	}
}

func TestMatchesRangeInclusiveBounds(t *testing.T) {
	t.Parallel()

	p := activeProcess("p-1", ts(5))
	for _, tc := range []struct {
		name   string
		lo, hi time.Time
		want   bool
	}{
		{"inside", ts(0), ts(10), true},
		{"atLowerBound", ts(5), ts(10), true},
		{"atUpperBound", ts(0), ts(5), true},
		{"below", ts(6), ts(10), false},
		{"above", ts(0), ts(4), false},
	} {
		ok, err := ProcessInstances.Matches(p, Range{Field: "start", Lo: tc.lo, Hi: tc.hi})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, ok, tc.want)
		}
	}
}

func TestMatchesNullSemantics(t *testing.T) {
	t.Parallel()

	p := activeProcess("p-1", ts(0))
	// end is unset: it matches IsNull and nothing else, not even Equal.
	ok, err := ProcessInstances.Matches(p, IsNull{Field: "end"})
	if err != nil || !ok {
		t.Fatalf("isNull on unset field: ok=%v err=%v", ok, err)
	}
	ok, err = ProcessInstances.Matches(p, Equal{Field: "end", Value: ts(0)})
	if err != nil || ok {
		t.Fatalf("equal on unset field must not match: ok=%v err=%v", ok, err)
	}
	end := ts(9)
	p.EndedAt = &end
	ok, err = ProcessInstances.Matches(p, IsNull{Field: "end"})
	if err != nil || ok {
		t.Fatalf("isNull on set field must not match: ok=%v err=%v", ok, err)
	}
}

func TestMatchesAndComposition(t *testing.T) {
	t.Parallel()

	p := activeProcess("p-1", ts(5))
	f := And{Filters: []Filter{
		Equal{Field: "state", Value: "ACTIVE"},
		Range{Field: "start", Lo: ts(0), Hi: ts(10)},
	}}
	ok, err := ProcessInstances.Matches(p, f)
	if err != nil || !ok {
		t.Fatalf("and: ok=%v err=%v", ok, err)
	}
	f.Filters = append(f.Filters, Equal{Field: "processId", Value: "claims"})
	ok, err = ProcessInstances.Matches(p, f)
	if err != nil || ok {
		t.Fatalf("and with failing leaf: ok=%v err=%v", ok, err)
	}
	// Empty And matches everything.
	ok, err = ProcessInstances.Matches(p, And{})
	if err != nil || !ok {
		t.Fatalf("empty and: ok=%v err=%v", ok, err)
	}
}

func TestMatchesUnknownFieldErrors(t *testing.T) {
	t.Parallel()

	p := activeProcess("p-1", ts(0))
	_, err := ProcessInstances.Matches(p, Equal{Field: "color", Value: "red"})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestSortByFieldWithIDTiebreak(t *testing.T) {
	t.Parallel()

	entities := []domain.ProcessInstance{
		activeProcess("p-3", ts(5)),
		activeProcess("p-1", ts(9)),
		activeProcess("p-2", ts(5)),
	}
	if err := ProcessInstances.Sort(entities, &Order{Field: "start"}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	gotIDs := []string{entities[0].ID, entities[1].ID, entities[2].ID}
	wantIDs := []string{"p-2", "p-3", "p-1"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("ascending order: got %v, want %v", gotIDs, wantIDs)
		}
	}
	if err := ProcessInstances.Sort(entities, &Order{Field: "start", Descending: true}); err != nil {
		t.Fatalf("sort desc: %v", err)
	}
	if entities[0].ID != "p-1" {
		t.Fatalf("descending order: expected p-1 first, got %q", entities[0].ID)
	}
}

func TestSortUnsetFieldsLast(t *testing.T) {
	t.Parallel()

	noStart := domain.ProcessInstance{ID: "p-0", State: domain.ProcessInstanceActive}
	entities := []domain.ProcessInstance{noStart, activeProcess("p-9", ts(1))}
	if err := ProcessInstances.Sort(entities, &Order{Field: "start"}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if entities[0].ID != "p-9" || entities[1].ID != "p-0" {
		t.Fatalf("unset field should sort last: got %q, %q", entities[0].ID, entities[1].ID)
	}
}

func TestSortDefaultByID(t *testing.T) {
	t.Parallel()

	entities := []domain.ProcessInstance{
		activeProcess("p-2", ts(0)),
		activeProcess("p-1", ts(0)),
	}
	if err := ProcessInstances.Sort(entities, nil); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if entities[0].ID != "p-1" {
		t.Fatalf("default id order broken: got %q first", entities[0].ID)
	}
}
