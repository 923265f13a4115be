package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/procindex/internal/domain"
)

// The merge functions compute the full post-merge entity from the current
// stored state (nil on first sight of the id) and one envelope. Fields
// absent from the event stay untouched; present fields overwrite. They never
// touch storage.

func mergeProcessInstance(cur *domain.ProcessInstance, env domain.Envelope) (domain.ProcessInstance, error) {
	var next domain.ProcessInstance
	if cur != nil {
		next = *cur
	} else {
		next.ID = env.EntityID
	}
	if ch := env.ProcessInstance; ch != nil {
		if ch.ProcessID != nil {
			next.ProcessID = *ch.ProcessID
		}
		if ch.ProcessName != nil {
			next.ProcessName = *ch.ProcessName
		}
		if ch.Version != nil {
			next.Version = *ch.Version
		}
		if ch.State != nil {
			next.State = *ch.State
		}
		if ch.BusinessKey != nil {
			next.BusinessKey = *ch.BusinessKey
		}
		if ch.Endpoint != nil {
			next.Endpoint = *ch.Endpoint
		}
		if ch.Roles != nil {
			next.Roles = ch.Roles
		}
		if ch.RootProcessInstanceID != nil {
			next.RootProcessInstanceID = ch.RootProcessInstanceID
		}
		if ch.ParentProcessInstanceID != nil {
			next.ParentProcessInstanceID = ch.ParentProcessInstanceID
		}
		if ch.Variables != nil {
			next.Variables = ch.Variables
		}
		if ch.StartedAt != nil {
			next.StartedAt = ch.StartedAt
		}
		if ch.EndedAt != nil {
			next.EndedAt = ch.EndedAt
		}
	}
	finishMerge(&next.LastUpdate, &next.LastSequence, env)
	return next, nil
}

func mergeUserTaskInstance(cur *domain.UserTaskInstance, env domain.Envelope) (domain.UserTaskInstance, error) {
	var next domain.UserTaskInstance
	if cur != nil {
		next = *cur
		// Nested slices are merged by key below; detach them from the stored
		// copy first so the caller's view is never mutated in place.
		next.Comments = append([]domain.Comment(nil), cur.Comments...)
		next.Attachments = append([]domain.Attachment(nil), cur.Attachments...)
	} else {
		next.ID = env.EntityID
	}
	if ch := env.UserTask; ch != nil {
		if ch.ProcessInstanceID != nil {
			next.ProcessInstanceID = *ch.ProcessInstanceID
		}
		if ch.ProcessID != nil {
			next.ProcessID = *ch.ProcessID
		}
		if ch.Name != nil {
			next.Name = *ch.Name
		}
		if ch.Description != nil {
			next.Description = *ch.Description
		}
		if ch.State != nil {
			next.State = *ch.State
		}
		if ch.Priority != nil {
			next.Priority = *ch.Priority
		}
		if ch.ReferenceName != nil {
			next.ReferenceName = *ch.ReferenceName
		}
		if ch.ActualOwner != nil {
			next.ActualOwner = *ch.ActualOwner
		}
		if ch.PotentialUsers != nil {
			next.PotentialUsers = ch.PotentialUsers
		}
		if ch.PotentialGroups != nil {
			next.PotentialGroups = ch.PotentialGroups
		}
		if ch.Inputs != nil {
			next.Inputs = ch.Inputs
		}
		if ch.Outputs != nil {
			next.Outputs = ch.Outputs
		}
		if ch.StartedAt != nil {
			next.StartedAt = ch.StartedAt
		}
		if ch.CompletedAt != nil {
			next.CompletedAt = ch.CompletedAt
		}
	}
	if err := applyCollectionOps(&next, env.CollectionOps, env.OccurredAt); err != nil {
		return domain.UserTaskInstance{}, err
	}
	finishMerge(&next.LastUpdate, &next.LastSequence, env)
	return next, nil
}

func mergeJob(cur *domain.Job, env domain.Envelope) (domain.Job, error) {
	var next domain.Job
	if cur != nil {
		next = *cur
	} else {
		next.ID = env.EntityID
	}
	if ch := env.Job; ch != nil {
		if ch.ProcessInstanceID != nil {
			next.ProcessInstanceID = *ch.ProcessInstanceID
		}
		if ch.ProcessID != nil {
			next.ProcessID = *ch.ProcessID
		}
		if ch.Status != nil {
			next.Status = *ch.Status
		}
		if ch.ExpirationTime != nil {
			next.ExpirationTime = ch.ExpirationTime
		}
		if ch.Priority != nil {
			next.Priority = *ch.Priority
		}
		if ch.CallbackEndpoint != nil {
			next.CallbackEndpoint = *ch.CallbackEndpoint
		}
		if ch.RepeatInterval != nil {
			next.RepeatInterval = *ch.RepeatInterval
		}
		if ch.RepeatLimit != nil {
			next.RepeatLimit = *ch.RepeatLimit
		}
		if ch.ScheduledID != nil {
			next.ScheduledID = *ch.ScheduledID
		}
		if ch.Retries != nil {
			next.Retries = *ch.Retries
		}
		if ch.ExecutionCounter != nil {
			next.ExecutionCounter = *ch.ExecutionCounter
		}
	}
	finishMerge(&next.LastUpdate, &next.LastSequence, env)
	return next, nil
}

func finishMerge(lastUpdate *time.Time, lastSequence *uint64, env domain.Envelope) {
	*lastUpdate = env.OccurredAt
	if env.Sequence > *lastSequence {
		*lastSequence = env.Sequence
	}
}

// applyCollectionOps merges the keyed collection mutations into the task.
// Add is idempotent (re-adding an existing id refreshes its fields), update
// of a missing id errors, remove of a missing id succeeds.
func applyCollectionOps(task *domain.UserTaskInstance, ops []domain.CollectionOp, occurredAt time.Time) error {
	for _, op := range ops {
		switch op.Field {
		case domain.FieldComments:
			if err := applyCommentOp(task, op, occurredAt); err != nil {
				return err
			}
		case domain.FieldAttachments:
			if err := applyAttachmentOp(task, op, occurredAt); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyCommentOp(task *domain.UserTaskInstance, op domain.CollectionOp, occurredAt time.Time) error {
	switch op.Op {
	case domain.OpAdd:
		item := stampComment(*op.Comment, occurredAt)
		if idx := task.FindComment(item.ID); idx >= 0 {
			task.Comments[idx] = item
			return nil
		}
		task.Comments = append(task.Comments, item)
		return nil
	case domain.OpUpdate:
		item := stampComment(*op.Comment, occurredAt)
		idx := task.FindComment(item.ID)
		if idx < 0 {
			return fmt.Errorf("%w: comment %q on task %q", domain.ErrNotFound, item.ID, task.ID)
		}
		task.Comments[idx] = item
		return nil
	case domain.OpRemove:
		if idx := task.FindComment(op.ItemID); idx >= 0 {
			task.Comments = append(task.Comments[:idx], task.Comments[idx+1:]...)
		}
		return nil
	case domain.OpReplace:
		replaced := make([]domain.Comment, 0, len(op.Comments))
		for _, item := range op.Comments {
			replaced = append(replaced, stampComment(item, occurredAt))
		}
		task.Comments = replaced
		return nil
	}
	return nil
}

func applyAttachmentOp(task *domain.UserTaskInstance, op domain.CollectionOp, occurredAt time.Time) error {
	switch op.Op {
	case domain.OpAdd:
		item := stampAttachment(*op.Attachment, occurredAt)
		if idx := task.FindAttachment(item.ID); idx >= 0 {
			task.Attachments[idx] = item
			return nil
		}
		task.Attachments = append(task.Attachments, item)
		return nil
	case domain.OpUpdate:
		item := stampAttachment(*op.Attachment, occurredAt)
		idx := task.FindAttachment(item.ID)
		if idx < 0 {
			return fmt.Errorf("%w: attachment %q on task %q", domain.ErrNotFound, item.ID, task.ID)
		}
		task.Attachments[idx] = item
		return nil
	case domain.OpRemove:
		if idx := task.FindAttachment(op.ItemID); idx >= 0 {
			task.Attachments = append(task.Attachments[:idx], task.Attachments[idx+1:]...)
		}
		return nil
	case domain.OpReplace:
		replaced := make([]domain.Attachment, 0, len(op.Attachments))
		for _, item := range op.Attachments {
			replaced = append(replaced, stampAttachment(item, occurredAt))
		}
		task.Attachments = replaced
		return nil
	}
	return nil
}

// stampComment fills the per-item audit fields: a missing id gets generated
// (transport-initiated creates), a missing timestamp inherits the event's.
func stampComment(c domain.Comment, occurredAt time.Time) domain.Comment {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = occurredAt
	}
	return c
}

func stampAttachment(a domain.Attachment, occurredAt time.Time) domain.Attachment {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = occurredAt
	}
	return a
}
