package postgres

import (
	"fmt"
	"time"

	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/query"
	"gorm.io/gorm"
)

// translateFilter compiles the filter IR into gorm WHERE clauses. The bool
// result reports a query that can never match (empty In set): the caller
// short-circuits to an empty cursor without touching the database.
func translateFilter(tx *gorm.DB, columns map[string]string, f query.Filter) (*gorm.DB, bool, error) {
	if f == nil {
		return tx, false, nil
	}
	switch node := f.(type) {
	case query.Equal:
		col, err := column(columns, node.Field)
		if err != nil {
			return nil, false, err
		}
		return tx.Where(col+" = ?", sqlValue(node.Value)), false, nil
	case query.In:
		if len(node.Values) == 0 {
			return tx, true, nil
		}
		col, err := column(columns, node.Field)
		if err != nil {
			return nil, false, err
		}
		values := make([]any, len(node.Values))
		for i, v := range node.Values {
			values[i] = sqlValue(v)
		}
		return tx.Where(col+" IN ?", values), false, nil
	case query.Range:
		col, err := column(columns, node.Field)
		if err != nil {
			return nil, false, err
		}
		return tx.Where(col+" BETWEEN ? AND ?", sqlValue(node.Lo), sqlValue(node.Hi)), false, nil
	case query.IsNull:
		col, err := column(columns, node.Field)
		if err != nil {
			return nil, false, err
		}
		return tx.Where(col + " IS NULL"), false, nil
	case query.And:
		empty := false
		for _, child := range node.Filters {
			var err error
			var childEmpty bool
			tx, childEmpty, err = translateFilter(tx, columns, child)
			if err != nil {
				return nil, false, err
			}
			empty = empty || childEmpty
		}
		return tx, empty, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown filter node %T", domain.ErrUnsupportedFilter, f)
	}
}

// orderClause builds a stable ORDER BY: the requested sort key with id as
// tiebreak, or plain id when the caller specifies nothing.
func orderClause(columns map[string]string, order *query.Order) (string, error) {
	if order == nil {
		return "id ASC", nil
	}
	col, err := column(columns, order.Field)
	if err != nil {
		return "", err
	}
	dir := "ASC"
	if order.Descending {
		dir = "DESC"
	}
	if col == "id" {
		return "id " + dir, nil
	}
	return fmt.Sprintf("%s %s, id ASC", col, dir), nil
}

func column(columns map[string]string, field string) (string, error) {
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q is not queryable on the relational backend", domain.ErrUnsupportedFilter, field)
	}
	return col, nil
}

func sqlValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return domain.NormalizeTime(t)
	}
	return v
}
