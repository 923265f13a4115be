package postgres

import (
	"context"
	"errors"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/ports"
	"github.com/viralforge/procindex/internal/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPageSize = 100

type repository[M any, T any] struct {
	db       *gorm.DB
	schema   query.Schema[T]
	columns  map[string]string
	toModel  func(T) (M, error)
	toDomain func(M) (T, error)
	pageSize int
}

// NewStores builds the relational backend over an open gorm handle.
func NewStores(db *gorm.DB, pageSize int) ports.Stores {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return ports.Stores{
		ProcessInstances: &repository[processInstanceModel, domain.ProcessInstance]{
			db: db, schema: query.ProcessInstances, columns: processInstanceColumns,
			toModel: toProcessInstanceModel, toDomain: toDomainProcessInstance, pageSize: pageSize,
		},
		UserTasks: &repository[userTaskInstanceModel, domain.UserTaskInstance]{
			db: db, schema: query.UserTaskInstances, columns: userTaskInstanceColumns,
			toModel: toUserTaskInstanceModel, toDomain: toDomainUserTaskInstance, pageSize: pageSize,
		},
		Jobs: &repository[jobModel, domain.Job]{
			db: db, schema: query.Jobs, columns: jobColumns,
			toModel: toJobModel, toDomain: toDomainJob, pageSize: pageSize,
		},
	}
}

func (r *repository[M, T]) Get(ctx context.Context, id string) (*T, error) {
	var m M
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	entity, err := r.toDomain(m)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *repository[M, T]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	m, err := r.toModel(entity)
	if err != nil {
		return zero, err
	}
	// Full-row conflict update: the engine always writes the complete
	// post-merge entity, so last write per id wins atomically.
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return zero, mapError(err)
	}
	return r.toDomain(m)
}

func (r *repository[M, T]) Delete(ctx context.Context, id string) (bool, error) {
	var m M
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&m)
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository[M, T]) Query(ctx context.Context, spec query.Spec) (*ports.Cursor[T], error) {
	if err := r.schema.ValidateSpec(spec); err != nil {
		return nil, err
	}
	_, empty, err := translateFilter(r.db.Session(&gorm.Session{NewDB: true}), r.columns, spec.Filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(r.columns, spec.Order)
	if err != nil {
		return nil, err
	}
	if empty {
		return ports.NewCursor(r.pageSize, spec.Limit, func(context.Context, int, int) ([]T, error) {
			return nil, nil
		}), nil
	}
	fetch := func(ctx context.Context, offset, limit int) ([]T, error) {
		tx := r.db.WithContext(ctx).Model(new(M))
		tx, _, err := translateFilter(tx, r.columns, spec.Filter)
		if err != nil {
			return nil, err
		}
		var models []M
		if err := tx.Order(orderBy).Offset(offset).Limit(limit).Find(&models).Error; err != nil {
			return nil, mapError(err)
		}
		out := make([]T, 0, len(models))
		for _, m := range models {
			entity, err := r.toDomain(m)
			if err != nil {
				return nil, err
			}
			out = append(out, entity)
		}
		return out, nil
	}
	return ports.NewCursor(r.pageSize, spec.Limit, fetch), nil
}
