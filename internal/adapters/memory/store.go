// Package memory implements the storage port on an in-process concurrent
// map. It is the embedded-cache backend: no I/O, no transient faults, useful
// standalone for small deployments and as the reference implementation the
// conformance suite pins the other adapters against.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
)

const defaultPageSize = 100

type collection[T any] struct {
	schema    query.Schema[T]
	normalize func(*T)
	pageSize  int

	// Values are stored JSON-encoded so readers never share memory with
	// writers; a returned entity can be mutated freely by the caller.
	data *xsync.MapOf[string, []byte]
}

func newCollection[T any](schema query.Schema[T], normalize func(*T), pageSize int) *collection[T] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &collection[T]{
		schema:    schema,
		normalize: normalize,
		pageSize:  pageSize,
		data:      xsync.NewMapOf[string, []byte](),
	}
}

// NewStores builds the embedded-cache backend. pageSize tunes cursor pages;
// zero picks the default.
func NewStores(pageSize int) ports.Stores {
	return ports.Stores{
		ProcessInstances: newCollection(query.ProcessInstances, (*domain.ProcessInstance).Normalize, pageSize),
		UserTasks:        newCollection(query.UserTaskInstances, (*domain.UserTaskInstance).Normalize, pageSize),
		Jobs:             newCollection(query.Jobs, (*domain.Job).Normalize, pageSize),
	}
}

func (c *collection[T]) Get(_ context.Context, id string) (*T, error) {
	raw, ok := c.data.Load(id)
	if !ok {
		return nil, nil
	}
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("%w: decode %s %q: %v", domain.ErrStorageUnavailable, c.schema.Kind, id, err)
	}
	return &entity, nil
}

func (c *collection[T]) Upsert(_ context.Context, entity T) (T, error) {
	c.normalize(&entity)
	id := c.schema.ID(entity)
	if id == "" {
		var zero T
		return zero, fmt.Errorf("%w: %s without id", domain.ErrConstraintViolation, c.schema.Kind)
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: encode %s %q: %v", domain.ErrConstraintViolation, c.schema.Kind, id, err)
	}
	c.data.Store(id, raw)
	return entity, nil
}

func (c *collection[T]) Delete(_ context.Context, id string) (bool, error) {
	_, existed := c.data.LoadAndDelete(id)
	return existed, nil
}

func (c *collection[T]) Query(_ context.Context, spec query.Spec) (*ports.Cursor[T], error) {
	if err := c.schema.ValidateSpec(spec); err != nil {
		return nil, err
	}
	snapshot, err := c.snapshot(spec)
	if err != nil {
		return nil, err
	}
	fetch := func(_ context.Context, offset, limit int) ([]T, error) {
		if offset >= len(snapshot) {
			return nil, nil
		}
		end := offset + limit
		if end > len(snapshot) {
			end = len(snapshot)
		}
		return snapshot[offset:end], nil
	}
	return ports.NewCursor(c.pageSize, spec.Limit, fetch), nil
}

func (c *collection[T]) snapshot(spec query.Spec) ([]T, error) {
	var matched []T
	var decodeErr error
	c.data.Range(func(id string, raw []byte) bool {
		var entity T
		if err := json.Unmarshal(raw, &entity); err != nil {
			decodeErr = fmt.Errorf("%w: decode %s %q: %v", domain.ErrStorageUnavailable, c.schema.Kind, id, err)
			return false
		}
		ok, err := c.schema.Matches(entity, spec.Filter)
		if err != nil {
			decodeErr = err
			return false
		}
		if ok {
			matched = append(matched, entity)
		}
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err := c.schema.Sort(matched, spec.Order); err != nil {
		return nil, err
	}
	return matched, nil
}
