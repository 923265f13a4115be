package domain

import (
	"encoding/json"
	"time"
)

type EntityKind string

const (
	KindProcessInstance  EntityKind = "ProcessInstance"
	KindUserTaskInstance EntityKind = "UserTaskInstance"
	KindJob              EntityKind = "Job"
)

type ProcessInstanceState string

const (
	ProcessInstanceActive    ProcessInstanceState = "ACTIVE"
	ProcessInstanceCompleted ProcessInstanceState = "COMPLETED"
	ProcessInstanceAborted   ProcessInstanceState = "ABORTED"
	ProcessInstanceSuspended ProcessInstanceState = "SUSPENDED"
	ProcessInstanceError     ProcessInstanceState = "ERROR"
)

type JobStatus string

const (
	JobScheduled JobStatus = "SCHEDULED"
	JobExecuted  JobStatus = "EXECUTED"
	JobCanceled  JobStatus = "CANCELED"
	JobRetry     JobStatus = "RETRY"
	JobErrored   JobStatus = "ERROR"
)

type ProcessInstance struct {
	ID                      string
	ProcessID               string
	ProcessName             string
	Version                 string
	State                   ProcessInstanceState
	BusinessKey             string
	Endpoint                string
	Roles                   []string
	RootProcessInstanceID   *string
	ParentProcessInstanceID *string
	Variables               json.RawMessage
	StartedAt               *time.Time
	EndedAt                 *time.Time
	LastUpdate              time.Time
	LastSequence            uint64
}

type UserTaskInstance struct {
	ID                string
	ProcessInstanceID string
	ProcessID         string
	Name              string
	Description       string
	State             string
	Priority          string
	ReferenceName     string
	ActualOwner       string
	PotentialUsers    []string
	PotentialGroups   []string
	Inputs            json.RawMessage
	Outputs           json.RawMessage
	Comments          []Comment
	Attachments       []Attachment
	StartedAt         *time.Time
	CompletedAt       *time.Time
	LastUpdate        time.Time
	LastSequence      uint64
}

type Job struct {
	ID                string
	ProcessInstanceID string
	ProcessID         string
	Status            JobStatus
	ExpirationTime    *time.Time
	Priority          int
	CallbackEndpoint  string
	RepeatInterval    int64
	RepeatLimit       int
	ScheduledID       string
	Retries           int
	ExecutionCounter  int
	LastUpdate        time.Time
	LastSequence      uint64
}

// Comment is a nested value object on a user task, keyed by its own ID.
// UpdatedAt and UpdatedBy reflect the event that last touched this comment,
// independent of the parent task's LastUpdate.
type Comment struct {
	ID        string
	Content   string
	UpdatedBy string
	UpdatedAt time.Time
}

type Attachment struct {
	ID        string
	Name      string
	Content   string
	UpdatedBy string
	UpdatedAt time.Time
}

// NormalizeTime converts a timestamp to the canonical stored precision: UTC,
// truncated to whole milliseconds. Both codec directions apply it so round
// trips compare equal across backends with different native precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func NormalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}

func (p *ProcessInstance) Normalize() {
	p.StartedAt = NormalizeTimePtr(p.StartedAt)
	p.EndedAt = NormalizeTimePtr(p.EndedAt)
	p.LastUpdate = NormalizeTime(p.LastUpdate)
}

func (t *UserTaskInstance) Normalize() {
	t.StartedAt = NormalizeTimePtr(t.StartedAt)
	t.CompletedAt = NormalizeTimePtr(t.CompletedAt)
	t.LastUpdate = NormalizeTime(t.LastUpdate)
	for i := range t.Comments {
		t.Comments[i].UpdatedAt = NormalizeTime(t.Comments[i].UpdatedAt)
	}
	for i := range t.Attachments {
		t.Attachments[i].UpdatedAt = NormalizeTime(t.Attachments[i].UpdatedAt)
	}
}

func (j *Job) Normalize() {
	j.ExpirationTime = NormalizeTimePtr(j.ExpirationTime)
	j.LastUpdate = NormalizeTime(j.LastUpdate)
}

func (t *UserTaskInstance) FindComment(id string) int {
	for i := range t.Comments {
		if t.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *UserTaskInstance) FindAttachment(id string) int {
	for i := range t.Attachments {
		if t.Attachments[i].ID == id {
			return i
		}
	}
	return -1
}
