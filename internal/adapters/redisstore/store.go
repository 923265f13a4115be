// Package redisstore implements the storage port on a remote cache, storing
// each entity as one JSON document plus a sorted id set per kind for
// deterministic pagination. Filters are evaluated against the decoded
// documents with the shared IR matcher; the id sets bound how much is read
// per page on unfiltered scans.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
)

const (
	keyPrefix       = "index"
	defaultPageSize = 100
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

type documentStore[T any] struct {
	client    *redis.Client
	schema    query.Schema[T]
	normalize func(*T)
	kindKey   string
	pageSize  int
}

// NewStores builds the document backend over an open client.
func NewStores(client *redis.Client, pageSize int) ports.Stores {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return ports.Stores{
		ProcessInstances: &documentStore[domain.ProcessInstance]{
			client: client, schema: query.ProcessInstances,
			normalize: (*domain.ProcessInstance).Normalize, kindKey: "pi", pageSize: pageSize,
		},
		UserTasks: &documentStore[domain.UserTaskInstance]{
			client: client, schema: query.UserTaskInstances,
			normalize: (*domain.UserTaskInstance).Normalize, kindKey: "task", pageSize: pageSize,
		},
		Jobs: &documentStore[domain.Job]{
			client: client, schema: query.Jobs,
			normalize: (*domain.Job).Normalize, kindKey: "job", pageSize: pageSize,
		},
	}
}

func (s *documentStore[T]) docKey(id string) string {
	return keyPrefix + ":" + s.kindKey + ":" + id
}

func (s *documentStore[T]) idsKey() string {
	return keyPrefix + ":" + s.kindKey + ":ids"
}

func (s *documentStore[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, err := s.client.Get(ctx, s.docKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	entity, err := s.decode(id, raw)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *documentStore[T]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	s.normalize(&entity)
	id := s.schema.ID(entity)
	if id == "" {
		return zero, fmt.Errorf("%w: %s without id", domain.ErrConstraintViolation, s.schema.Kind)
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return zero, fmt.Errorf("%w: encode %s %q: %v", domain.ErrConstraintViolation, s.schema.Kind, id, err)
	}
	// Document and id-set entry commit together; all members score 0 so the
	// set orders lexicographically by id.
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.docKey(id), raw, 0)
		p.ZAdd(ctx, s.idsKey(), redis.Z{Score: 0, Member: id})
		return nil
	})
	if err != nil {
		return zero, mapError(err)
	}
	return entity, nil
}

func (s *documentStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	var delCmd *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		delCmd = p.Del(ctx, s.docKey(id))
		p.ZRem(ctx, s.idsKey(), id)
		return nil
	})
	if err != nil {
		return false, mapError(err)
	}
	return delCmd.Val() > 0, nil
}

func (s *documentStore[T]) Query(ctx context.Context, spec query.Spec) (*ports.Cursor[T], error) {
	if err := s.schema.ValidateSpec(spec); err != nil {
		return nil, err
	}
	if spec.Filter == nil && spec.Order == nil {
		// Unfiltered scan in id order pages straight off the sorted set.
		fetch := func(ctx context.Context, offset, limit int) ([]T, error) {
			ids, err := s.client.ZRange(ctx, s.idsKey(), int64(offset), int64(offset+limit-1)).Result()
			if err != nil {
				return nil, mapError(err)
			}
			return s.fetchDocs(ctx, ids)
		}
		return ports.NewCursor(s.pageSize, spec.Limit, fetch), nil
	}
	snapshot, err := s.snapshot(ctx, spec)
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
	return ports.NewCursor(s.pageSize, spec.Limit, fetch), nil
}

// snapshot pages through the id set, decodes and matches documents, and
// sorts the survivors. Filtered queries need the full match set before
// pagination so offsets stay stable while entities churn.
func (s *documentStore[T]) snapshot(ctx context.Context, spec query.Spec) ([]T, error) {
	var matched []T
	for cursor := int64(0); ; cursor += int64(s.pageSize) {
		ids, err := s.client.ZRange(ctx, s.idsKey(), cursor, cursor+int64(s.pageSize)-1).Result()
		if err != nil {
			return nil, mapError(err)
		}
		if len(ids) == 0 {
			break
		}
		entities, err := s.fetchDocs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, entity := range entities {
			ok, err := s.schema.Matches(entity, spec.Filter)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = append(matched, entity)
			}
		}
		if len(ids) < s.pageSize {
			break
		}
	}
	if err := s.schema.Sort(matched, spec.Order); err != nil {
		return nil, err
	}
	return matched, nil
}

func (s *documentStore[T]) fetchDocs(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			// Document vanished between ZRANGE and MGET; the id set entry
			// goes with the next delete, skip it here.
			continue
		}
		entity, err := s.decode(ids[i], []byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (s *documentStore[T]) decode(id string, raw []byte) (T, error) {
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("%w: decode %s %q: %v", domain.ErrStorageUnavailable, s.schema.Kind, id, err)
	}
	return entity, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
