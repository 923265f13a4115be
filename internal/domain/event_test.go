package domain

import (
	"errors"
	"testing"
)

func TestEnvelopeValidateRejectsMissingID(t *testing.T) {
	t.Parallel()

	env := Envelope{Kind: KindProcessInstance, ProcessInstance: &ProcessInstanceChange{}}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestEnvelopeValidateRejectsForeignVariant(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Kind:     KindProcessInstance,
		EntityID: "p-1",
		Job:      &JobChange{},
	}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for job change on process event, got %v", err)
	}
}

func TestEnvelopeValidateRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	env := Envelope{Kind: "Widget", EntityID: "w-1"}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for unknown kind, got %v", err)
	}
}

func TestEnvelopeValidateCollectionOpsOnlyOnUserTasks(t *testing.T) {
	t.Parallel()

	c := Comment{ID: "c-1", Content: "x"}
	env := Envelope{
		Kind:            KindProcessInstance,
		EntityID:        "p-1",
		ProcessInstance: &ProcessInstanceChange{},
		CollectionOps: []CollectionOp{
			{Field: FieldComments, Op: OpAdd, Comment: &c},
		},
	}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestEnvelopeValidateCollectionOpPayloads(t *testing.T) {
	t.Parallel()

	base := Envelope{Kind: KindUserTaskInstance, EntityID: "t-1", UserTask: &UserTaskInstanceChange{}}

	env := base
	env.CollectionOps = []CollectionOp{{Field: FieldComments, Op: OpAdd}}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("add without payload: expected ErrSchemaViolation, got %v", err)
	}

	env = base
	env.CollectionOps = []CollectionOp{{Field: FieldAttachments, Op: OpRemove}}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("remove without item id: expected ErrSchemaViolation, got %v", err)
	}

	env = base
	env.CollectionOps = []CollectionOp{{Field: "tags", Op: OpAdd}}
	if err := env.Validate(); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("unknown field: expected ErrSchemaViolation, got %v", err)
	}

	env = base
	c := Comment{ID: "c-1"}
	env.CollectionOps = []CollectionOp{
		{Field: FieldComments, Op: OpAdd, ItemID: "c-1", Comment: &c},
		{Field: FieldAttachments, Op: OpRemove, ItemID: "a-1"},
		{Field: FieldComments, Op: OpReplace},
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}
}

func TestEnvelopeValidateAcceptsEachKind(t *testing.T) {
	t.Parallel()

	cases := []Envelope{
		{Kind: KindProcessInstance, EntityID: "p-1", ProcessInstance: &ProcessInstanceChange{}},
		{Kind: KindUserTaskInstance, EntityID: "t-1", UserTask: &UserTaskInstanceChange{}},
		{Kind: KindJob, EntityID: "j-1", Job: &JobChange{}},
		// A bare envelope with no change variant is a legal no-op carrier.
		{Kind: KindJob, EntityID: "j-2"},
	}
	for _, env := range cases {
		if err := env.Validate(); err != nil {
			t.Fatalf("envelope %+v: unexpected error %v", env, err)
		}
	}
}
