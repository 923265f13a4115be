package query

import (
	"fmt"
	"time"

	"github.com/viralforge/procindex/internal/domain"
)

// FieldFunc extracts one queryable field from an entity. The bool reports
// whether the field is set; false means SQL-NULL semantics for IsNull.
type FieldFunc[T any] func(T) (any, bool)

// Schema lists the queryable fields of one entity kind. The field set is
// identical across backends; adapters consult it before translating so an
// unknown field fails as ErrUnsupportedFilter instead of silently matching
// nothing.
type Schema[T any] struct {
	Kind   domain.EntityKind
	ID     func(T) string
	Fields map[string]FieldFunc[T]
}

func (s Schema[T]) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// Validate walks the filter tree and rejects unknown fields and malformed
// nodes before any backend work happens.
func (s Schema[T]) Validate(f Filter) error {
	if f == nil {
		return nil
	}
	switch node := f.(type) {
	case Equal:
		return s.checkField(node.Field)
	case In:
		return s.checkField(node.Field)
	case Range:
		if err := s.checkField(node.Field); err != nil {
			return err
		}
		if node.Lo == nil || node.Hi == nil {
			return fmt.Errorf("%w: range on %q needs both bounds", domain.ErrUnsupportedFilter, node.Field)
		}
		return nil
	case IsNull:
		return s.checkField(node.Field)
	case And:
		for _, child := range node.Filters {
			if err := s.Validate(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown filter node %T", domain.ErrUnsupportedFilter, f)
	}
}

// ValidateSpec checks the filter and the ordering field.
func (s Schema[T]) ValidateSpec(spec Spec) error {
	if err := s.Validate(spec.Filter); err != nil {
		return err
	}
	if spec.Order != nil {
		return s.checkField(spec.Order.Field)
	}
	return nil
}

func (s Schema[T]) checkField(name string) error {
	if !s.HasField(name) {
		return fmt.Errorf("%w: %s has no queryable field %q", domain.ErrUnsupportedFilter, s.Kind, name)
	}
	return nil
}

// ProcessInstances is the queryable field schema of process instances.
var ProcessInstances = Schema[domain.ProcessInstance]{
	Kind: domain.KindProcessInstance,
	ID:   func(p domain.ProcessInstance) string { return p.ID },
	Fields: map[string]FieldFunc[domain.ProcessInstance]{
		"id":          func(p domain.ProcessInstance) (any, bool) { return p.ID, true },
		"processId":   func(p domain.ProcessInstance) (any, bool) { return p.ProcessID, true },
		"processName": func(p domain.ProcessInstance) (any, bool) { return p.ProcessName, true },
		"version":     func(p domain.ProcessInstance) (any, bool) { return p.Version, true },
		"state":       func(p domain.ProcessInstance) (any, bool) { return string(p.State), true },
		"businessKey": func(p domain.ProcessInstance) (any, bool) { return p.BusinessKey, true },
		"endpoint":    func(p domain.ProcessInstance) (any, bool) { return p.Endpoint, true },
		"rootProcessInstanceId": func(p domain.ProcessInstance) (any, bool) {
			return strOrNil(p.RootProcessInstanceID)
		},
		"parentProcessInstanceId": func(p domain.ProcessInstance) (any, bool) {
			return strOrNil(p.ParentProcessInstanceID)
		},
		"start":      func(p domain.ProcessInstance) (any, bool) { return timeOrNil(p.StartedAt) },
		"end":        func(p domain.ProcessInstance) (any, bool) { return timeOrNil(p.EndedAt) },
		"lastUpdate": func(p domain.ProcessInstance) (any, bool) { return p.LastUpdate, true },
	},
}

// UserTaskInstances is the queryable field schema of user task instances.
// Nested collections are deliberately absent: comments and attachments are
// reached through the owning task, not filtered on directly.
var UserTaskInstances = Schema[domain.UserTaskInstance]{
	Kind: domain.KindUserTaskInstance,
	ID:   func(t domain.UserTaskInstance) string { return t.ID },
	Fields: map[string]FieldFunc[domain.UserTaskInstance]{
		"id":                func(t domain.UserTaskInstance) (any, bool) { return t.ID, true },
		"processInstanceId": func(t domain.UserTaskInstance) (any, bool) { return t.ProcessInstanceID, true },
		"processId":         func(t domain.UserTaskInstance) (any, bool) { return t.ProcessID, true },
		"name":              func(t domain.UserTaskInstance) (any, bool) { return t.Name, true },
		"state":             func(t domain.UserTaskInstance) (any, bool) { return t.State, true },
		"priority":          func(t domain.UserTaskInstance) (any, bool) { return t.Priority, true },
		"referenceName":     func(t domain.UserTaskInstance) (any, bool) { return t.ReferenceName, true },
		"actualOwner":       func(t domain.UserTaskInstance) (any, bool) { return t.ActualOwner, true },
		"started":           func(t domain.UserTaskInstance) (any, bool) { return timeOrNil(t.StartedAt) },
		"completed":         func(t domain.UserTaskInstance) (any, bool) { return timeOrNil(t.CompletedAt) },
		"lastUpdate":        func(t domain.UserTaskInstance) (any, bool) { return t.LastUpdate, true },
	},
}

// Jobs is the queryable field schema of jobs.
var Jobs = Schema[domain.Job]{
	Kind: domain.KindJob,
	ID:   func(j domain.Job) string { return j.ID },
	Fields: map[string]FieldFunc[domain.Job]{
		"id":                func(j domain.Job) (any, bool) { return j.ID, true },
		"processInstanceId": func(j domain.Job) (any, bool) { return j.ProcessInstanceID, true },
		"processId":         func(j domain.Job) (any, bool) { return j.ProcessID, true },
		"status":            func(j domain.Job) (any, bool) { return string(j.Status), true },
		"priority":          func(j domain.Job) (any, bool) { return j.Priority, true },
		"scheduledId":       func(j domain.Job) (any, bool) { return j.ScheduledID, true },
		"expirationTime":    func(j domain.Job) (any, bool) { return timeOrNil(j.ExpirationTime) },
		"lastUpdate":        func(j domain.Job) (any, bool) { return j.LastUpdate, true },
	},
}

func strOrNil(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func timeOrNil(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return *t, true
}
