package query

import (
	"errors"
	"testing"

	"github.com/viralforge/procindex/internal/domain"
)

func TestValidateAcceptsKnownFields(t *testing.T) {
	t.Parallel()

	f := And{Filters: []Filter{
		Equal{Field: "state", Value: "ACTIVE"},
		In{Field: "processId", Values: []any{"orders", "claims"}},
		IsNull{Field: "end"},
	}}
	if err := ProcessInstances.Validate(f); err != nil {
		t.Fatalf("expected valid filter, got %v", err)
	}
}

func TestValidateRejectsUnknownField(t *testing.T) {
	t.Parallel()

	err := ProcessInstances.Validate(Equal{Field: "color", Value: "red"})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
	// A bad leaf buried inside And must surface too.
	err = ProcessInstances.Validate(And{Filters: []Filter{
		Equal{Field: "state", Value: "ACTIVE"},
		IsNull{Field: "color"},
	}})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter from nested leaf, got %v", err)
	}
}

func TestValidateRejectsHalfOpenRange(t *testing.T) {
	t.Parallel()

	err := Jobs.Validate(Range{Field: "priority", Lo: 1})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter for missing bound, got %v", err)
	}
}

func TestValidateSpecChecksOrderField(t *testing.T) {
	t.Parallel()

	err := UserTaskInstances.ValidateSpec(Spec{Order: &Order{Field: "comments"}})
	if !errors.Is(err, domain.ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter for non-queryable order field, got %v", err)
	}
	if err := UserTaskInstances.ValidateSpec(Spec{Order: &Order{Field: "started", Descending: true}}); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

func TestValidateNilFilterIsValid(t *testing.T) {
	t.Parallel()

	if err := Jobs.Validate(nil); err != nil {
		t.Fatalf("expected nil filter to validate, got %v", err)
	}
}
