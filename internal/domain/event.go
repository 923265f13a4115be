package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type CollectionOpKind string

const (
	OpAdd     CollectionOpKind = "add"
	OpUpdate  CollectionOpKind = "update"
	OpRemove  CollectionOpKind = "remove"
	OpReplace CollectionOpKind = "replace"
)

type CollectionField string

const (
	FieldComments    CollectionField = "comments"
	FieldAttachments CollectionField = "attachments"
)

// CollectionOp is a keyed mutation of a nested collection. Add and Update
// carry the item payload; Remove carries only ItemID. Replace swaps the whole
// collection for the carried items and is the only non-keyed operation.
type CollectionOp struct {
	Field       CollectionField
	Op          CollectionOpKind
	ItemID      string
	Comment     *Comment
	Attachment  *Attachment
	Comments    []Comment
	Attachments []Attachment
}

// ProcessInstanceChange is the sparse field set of a process instance event.
// Nil fields are untouched on merge; set fields overwrite.
type ProcessInstanceChange struct {
	ProcessID               *string
	ProcessName             *string
	Version                 *string
	State                   *ProcessInstanceState
	BusinessKey             *string
	Endpoint                *string
	Roles                   []string
	RootProcessInstanceID   *string
	ParentProcessInstanceID *string
	Variables               json.RawMessage
	StartedAt               *time.Time
	EndedAt                 *time.Time
}

type UserTaskInstanceChange struct {
	ProcessInstanceID *string
	ProcessID         *string
	Name              *string
	Description       *string
	State             *string
	Priority          *string
	ReferenceName     *string
	ActualOwner       *string
	PotentialUsers    []string
	PotentialGroups   []string
	Inputs            json.RawMessage
	Outputs           json.RawMessage
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

type JobChange struct {
	ProcessInstanceID *string
	ProcessID         *string
	Status            *JobStatus
	ExpirationTime    *time.Time
	Priority          *int
	CallbackEndpoint  *string
	RepeatInterval    *int64
	RepeatLimit       *int
	ScheduledID       *string
	Retries           *int
	ExecutionCounter  *int
}

// Envelope is one partial update about exactly one entity. Exactly one change
// variant must be set and must match Kind. Sequence is the per-entity
// idempotency watermark; zero means locally originated (transport mutation)
// and bypasses the watermark check without regressing it.
type Envelope struct {
	EventID    string
	Kind       EntityKind
	EntityID   string
	Sequence   uint64
	OccurredAt time.Time

	ProcessInstance *ProcessInstanceChange
	UserTask        *UserTaskInstanceChange
	Job             *JobChange

	CollectionOps []CollectionOp
}

func (e Envelope) Validate() error {
	if e.EntityID == "" {
		return fmt.Errorf("%w: envelope without entity id", ErrSchemaViolation)
	}
	variants := 0
	if e.ProcessInstance != nil {
		variants++
	}
	if e.UserTask != nil {
		variants++
	}
	if e.Job != nil {
		variants++
	}
	switch e.Kind {
	case KindProcessInstance:
		if e.UserTask != nil || e.Job != nil {
			return fmt.Errorf("%w: %s event %q carries a foreign change variant", ErrSchemaViolation, e.Kind, e.EntityID)
		}
	case KindUserTaskInstance:
		if e.ProcessInstance != nil || e.Job != nil {
			return fmt.Errorf("%w: %s event %q carries a foreign change variant", ErrSchemaViolation, e.Kind, e.EntityID)
		}
	case KindJob:
		if e.ProcessInstance != nil || e.UserTask != nil {
			return fmt.Errorf("%w: %s event %q carries a foreign change variant", ErrSchemaViolation, e.Kind, e.EntityID)
		}
	default:
		return fmt.Errorf("%w: unknown entity kind %q", ErrSchemaViolation, e.Kind)
	}
	if variants > 1 {
		return fmt.Errorf("%w: event %q carries multiple change variants", ErrSchemaViolation, e.EntityID)
	}
	if len(e.CollectionOps) > 0 && e.Kind != KindUserTaskInstance {
		return fmt.Errorf("%w: collection ops are only defined on %s", ErrSchemaViolation, KindUserTaskInstance)
	}
	for _, op := range e.CollectionOps {
		if err := op.validate(); err != nil {
			return fmt.Errorf("%s %q: %w", e.Kind, e.EntityID, err)
		}
	}
	return nil
}

func (op CollectionOp) validate() error {
	switch op.Field {
	case FieldComments, FieldAttachments:
	default:
		return fmt.Errorf("%w: unknown collection field %q", ErrSchemaViolation, op.Field)
	}
	switch op.Op {
	case OpAdd, OpUpdate:
		if op.Field == FieldComments && op.Comment == nil {
			return fmt.Errorf("%w: %s op without comment payload", ErrSchemaViolation, op.Op)
		}
		if op.Field == FieldAttachments && op.Attachment == nil {
			return fmt.Errorf("%w: %s op without attachment payload", ErrSchemaViolation, op.Op)
		}
	case OpRemove:
		if op.ItemID == "" {
			return fmt.Errorf("%w: remove op without item id", ErrSchemaViolation)
		}
	case OpReplace:
	default:
		return fmt.Errorf("%w: unknown collection op %q", ErrSchemaViolation, op.Op)
	}
	return nil
}
