package ports

import (
	"context"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/query"
)

// Storage is the contract every backend adapter implements per entity kind.
//
// Get returns nil without error on a miss. Query returns a lazy, restartable
// cursor ordered by the spec's sort key (id ascending when none is given).
// Upsert writes the full post-merge entity atomically for that id and returns
// the stored form. Backend faults surface as domain.ErrStorageUnavailable
// (retryable) or domain.ErrConstraintViolation; calls honor ctx deadlines.
type Storage[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Query(ctx context.Context, spec query.Spec) (*Cursor[T], error)
	Upsert(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Stores bundles the per-kind storage of the active backend. All three
// members always come from the same adapter.
type Stores struct {
	ProcessInstances Storage[domain.ProcessInstance]
	UserTasks        Storage[domain.UserTaskInstance]
	Jobs             Storage[domain.Job]
}

// FetchFunc produces one page of results at the given offset. A short page
// ends the sequence. The ordering behind consecutive calls must be stable so
// the cursor can restart after abandonment.
type FetchFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Cursor pulls query results page by page. No background work runs between
// Next calls; abandoning the cursor leaks nothing.
type Cursor[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
	limit    int
	buf      []T
	pos      int
	offset   int
	served   int
	done     bool
}

func NewCursor[T any](pageSize, limit int, fetch FetchFunc[T]) *Cursor[T] {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Cursor[T]{fetch: fetch, pageSize: pageSize, limit: limit}
}

// Next returns the next entity, or ok=false when the sequence is exhausted.
func (c *Cursor[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if c.done || (c.limit > 0 && c.served >= c.limit) {
		return zero, false, nil
	}
	if c.pos >= len(c.buf) {
		size := c.pageSize
		if c.limit > 0 && c.limit-c.served < size {
			size = c.limit - c.served
		}
		page, err := c.fetch(ctx, c.offset, size)
		if err != nil {
			return zero, false, err
		}
		if len(page) < size {
			c.done = true
		}
		if len(page) == 0 {
			return zero, false, nil
		}
		c.buf = page
		c.pos = 0
		c.offset += len(page)
	}
	item := c.buf[c.pos]
	c.pos++
	c.served++
	return item, true, nil
}

// Close releases the cursor. Provided for callers that stop mid-stream;
// the cursor holds no resources beyond its current page.
func (c *Cursor[T]) Close() {
	c.done = true
	c.buf = nil
}

// Collect drains a cursor into a slice. Mainly a test and facade helper.
func Collect[T any](ctx context.Context, c *Cursor[T]) ([]T, error) {
	defer c.Close()
	var out []T
	for {
		item, ok, err := c.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}
