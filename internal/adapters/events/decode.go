package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viralforge/procindex/internal/domain"
)

// Wire envelope as produced by the process engine's event emitter: a small
// header plus a sparse, kind-specific data payload. Absent fields decode to
// nil pointers, which is exactly the sparse-change contract of the engine.
type wireEnvelope struct {
	EventID    string          `json:"event_id"`
	OccurredAt *time.Time      `json:"occurred_at"`
	Sequence   uint64          `json:"sequence"`
	Data       json.RawMessage `json:"data"`
}

type wireProcessInstanceData struct {
	ID                      string                       `json:"id"`
	ProcessID               *string                      `json:"process_id"`
	ProcessName             *string                      `json:"process_name"`
	Version                 *string                      `json:"version"`
	State                   *domain.ProcessInstanceState `json:"state"`
	BusinessKey             *string                      `json:"business_key"`
	Endpoint                *string                      `json:"endpoint"`
	Roles                   []string                     `json:"roles"`
	RootProcessInstanceID   *string                      `json:"root_process_instance_id"`
	ParentProcessInstanceID *string                      `json:"parent_process_instance_id"`
	Variables               json.RawMessage              `json:"variables"`
	StartedAt               *time.Time                   `json:"start"`
	EndedAt                 *time.Time                   `json:"end"`
}

type wireUserTaskData struct {
	ID                string           `json:"id"`
	ProcessInstanceID *string          `json:"process_instance_id"`
	ProcessID         *string          `json:"process_id"`
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	State             *string          `json:"state"`
	Priority          *string          `json:"priority"`
	ReferenceName     *string          `json:"reference_name"`
	ActualOwner       *string          `json:"actual_owner"`
	PotentialUsers    []string         `json:"potential_users"`
	PotentialGroups   []string         `json:"potential_groups"`
	Inputs            json.RawMessage  `json:"inputs"`
	Outputs           json.RawMessage  `json:"outputs"`
	StartedAt         *time.Time       `json:"started"`
	CompletedAt       *time.Time       `json:"completed"`
	Comments          []wireCollection `json:"comments"`
	Attachments       []wireCollection `json:"attachments"`
}

type wireCollection struct {
	Op     string          `json:"op"`
	ItemID string          `json:"item_id"`
	Item   json.RawMessage `json:"item"`
	Items  json.RawMessage `json:"items"`
}

type wireComment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	UpdatedBy string     `json:"updated_by"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type wireAttachment struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Content   string     `json:"content"`
	UpdatedBy string     `json:"updated_by"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type wireJobData struct {
	ID                string            `json:"id"`
	ProcessInstanceID *string           `json:"process_instance_id"`
	ProcessID         *string           `json:"process_id"`
	Status            *domain.JobStatus `json:"status"`
	ExpirationTime    *time.Time        `json:"expiration_time"`
	Priority          *int              `json:"priority"`
	CallbackEndpoint  *string           `json:"callback_endpoint"`
	RepeatInterval    *int64            `json:"repeat_interval"`
	RepeatLimit       *int              `json:"repeat_limit"`
	ScheduledID       *string           `json:"scheduled_id"`
	Retries           *int              `json:"retries"`
	ExecutionCounter  *int              `json:"execution_counter"`
}

// decodeData unmarshals a kind-specific data payload. Unknown keys are
// rejected: a field the entity kind does not define is a schema violation,
// not something to drop silently.
func decodeData(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeEnvelope turns one wire message of a known entity kind into the
// engine's envelope. Malformed payloads surface as ErrSchemaViolation so the
// worker can drop them without redelivery.
func DecodeEnvelope(kind domain.EntityKind, payload []byte) (domain.Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: decode %s envelope: %v", domain.ErrSchemaViolation, kind, err)
	}
	env := domain.Envelope{
		EventID:  wire.EventID,
		Kind:     kind,
		Sequence: wire.Sequence,
	}
	if wire.OccurredAt != nil {
		env.OccurredAt = *wire.OccurredAt
	}
	switch kind {
	case domain.KindProcessInstance:
		var data wireProcessInstanceData
		if err := decodeData(wire.Data, &data); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: decode %s data: %v", domain.ErrSchemaViolation, kind, err)
		}
		env.EntityID = data.ID
		env.ProcessInstance = &domain.ProcessInstanceChange{
			ProcessID:               data.ProcessID,
			ProcessName:             data.ProcessName,
			Version:                 data.Version,
			State:                   data.State,
			BusinessKey:             data.BusinessKey,
			Endpoint:                data.Endpoint,
			Roles:                   data.Roles,
			RootProcessInstanceID:   data.RootProcessInstanceID,
			ParentProcessInstanceID: data.ParentProcessInstanceID,
			Variables:               data.Variables,
			StartedAt:               data.StartedAt,
			EndedAt:                 data.EndedAt,
		}
	case domain.KindUserTaskInstance:
		var data wireUserTaskData
		if err := decodeData(wire.Data, &data); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: decode %s data: %v", domain.ErrSchemaViolation, kind, err)
		}
		env.EntityID = data.ID
		env.UserTask = &domain.UserTaskInstanceChange{
			ProcessInstanceID: data.ProcessInstanceID,
			ProcessID:         data.ProcessID,
			Name:              data.Name,
			Description:       data.Description,
			State:             data.State,
			Priority:          data.Priority,
			ReferenceName:     data.ReferenceName,
			ActualOwner:       data.ActualOwner,
			PotentialUsers:    data.PotentialUsers,
			PotentialGroups:   data.PotentialGroups,
			Inputs:            data.Inputs,
			Outputs:           data.Outputs,
			StartedAt:         data.StartedAt,
			CompletedAt:       data.CompletedAt,
		}
		ops, err := decodeCollectionOps(data)
		if err != nil {
			return domain.Envelope{}, err
		}
		env.CollectionOps = ops
	case domain.KindJob:
		var data wireJobData
		if err := decodeData(wire.Data, &data); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: decode %s data: %v", domain.ErrSchemaViolation, kind, err)
		}
		env.EntityID = data.ID
		env.Job = &domain.JobChange{
			ProcessInstanceID: data.ProcessInstanceID,
			ProcessID:         data.ProcessID,
			Status:            data.Status,
			ExpirationTime:    data.ExpirationTime,
			Priority:          data.Priority,
			CallbackEndpoint:  data.CallbackEndpoint,
			RepeatInterval:    data.RepeatInterval,
			RepeatLimit:       data.RepeatLimit,
			ScheduledID:       data.ScheduledID,
			Retries:           data.Retries,
			ExecutionCounter:  data.ExecutionCounter,
		}
	default:
		return domain.Envelope{}, fmt.Errorf("%w: unknown entity kind %q", domain.ErrSchemaViolation, kind)
	}
	return env, nil
}

func decodeCollectionOps(data wireUserTaskData) ([]domain.CollectionOp, error) {
	var ops []domain.CollectionOp
	for _, w := range data.Comments {
		op := domain.CollectionOp{Field: domain.FieldComments, Op: domain.CollectionOpKind(w.Op), ItemID: w.ItemID}
		switch op.Op {
		case domain.OpAdd, domain.OpUpdate:
			comment, err := decodeComment(w.Item)
			if err != nil {
				return nil, err
			}
			op.Comment = comment
		case domain.OpReplace:
			var items []wireComment
			if len(w.Items) > 0 {
				if err := decodeData(w.Items, &items); err != nil {
					return nil, fmt.Errorf("%w: decode comment items: %v", domain.ErrSchemaViolation, err)
				}
			}
			for _, item := range items {
				op.Comments = append(op.Comments, item.toDomain())
			}
		}
		ops = append(ops, op)
	}
	for _, w := range data.Attachments {
		op := domain.CollectionOp{Field: domain.FieldAttachments, Op: domain.CollectionOpKind(w.Op), ItemID: w.ItemID}
		switch op.Op {
		case domain.OpAdd, domain.OpUpdate:
			attachment, err := decodeAttachment(w.Item)
			if err != nil {
				return nil, err
			}
			op.Attachment = attachment
		case domain.OpReplace:
			var items []wireAttachment
			if len(w.Items) > 0 {
				if err := decodeData(w.Items, &items); err != nil {
					return nil, fmt.Errorf("%w: decode attachment items: %v", domain.ErrSchemaViolation, err)
				}
			}
			for _, item := range items {
				op.Attachments = append(op.Attachments, item.toDomain())
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeComment(raw json.RawMessage) (*domain.Comment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var w wireComment
	if err := decodeData(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: decode comment: %v", domain.ErrSchemaViolation, err)
	}
	c := w.toDomain()
	return &c, nil
}

func decodeAttachment(raw json.RawMessage) (*domain.Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var w wireAttachment
	if err := decodeData(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: decode attachment: %v", domain.ErrSchemaViolation, err)
	}
	a := w.toDomain()
	return &a, nil
}

func (w wireComment) toDomain() domain.Comment {
	c := domain.Comment{ID: w.ID, Content: w.Content, UpdatedBy: w.UpdatedBy}
	if w.UpdatedAt != nil {
		c.UpdatedAt = *w.UpdatedAt
	}
	return c
}

func (w wireAttachment) toDomain() domain.Attachment {
	a := domain.Attachment{ID: w.ID, Name: w.Name, Content: w.Content, UpdatedBy: w.UpdatedBy}
	if w.UpdatedAt != nil {
		a.UpdatedAt = *w.UpdatedAt
	}
	return a
}
