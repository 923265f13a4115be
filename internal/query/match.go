package query

import (
	"fmt"
	"sort"
	"time"

	"github.com/viralforge/procindex/internal/domain"
)

// Matches evaluates the filter against one entity. The filter must already
// be validated; unknown fields still error rather than matching nothing.
func (s Schema[T]) Matches(e T, f Filter) (bool, error) {
	if f == nil {
		return true, nil
	}
	switch node := f.(type) {
	case Equal:
		val, ok, err := s.fieldValue(e, node.Field)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return valuesEqual(val, node.Value), nil
	case In:
		if len(node.Values) == 0 {
			return false, nil
		}
		val, ok, err := s.fieldValue(e, node.Field)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		for _, candidate := range node.Values {
			if valuesEqual(val, candidate) {
				return true, nil
			}
		}
		return false, nil
	case Range:
		val, ok, err := s.fieldValue(e, node.Field)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		lo, err := compareValues(val, node.Lo)
		if err != nil {
			return false, err
		}
		hi, err := compareValues(val, node.Hi)
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case IsNull:
		_, ok, err := s.fieldValue(e, node.Field)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case And:
		for _, child := range node.Filters {
			match, err := s.Matches(e, child)
			if err != nil || !match {
				return false, err
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown filter node %T", domain.ErrUnsupportedFilter, f)
	}
}

// Sort orders entities by the requested field with id as tiebreak, or by id
// when no ordering is given. Entities with an unset sort field sort last.
func (s Schema[T]) Sort(entities []T, order *Order) error {
	if order == nil {
		sort.Slice(entities, func(i, j int) bool {
			return s.ID(entities[i]) < s.ID(entities[j])
		})
		return nil
	}
	if err := s.checkField(order.Field); err != nil {
		return err
	}
	var sortErr error
	sort.Slice(entities, func(i, j int) bool {
		a, aOK, errA := s.fieldValue(entities[i], order.Field)
		b, bOK, errB := s.fieldValue(entities[j], order.Field)
		if errA != nil || errB != nil {
			if sortErr == nil {
				sortErr = errA
				if sortErr == nil {
					sortErr = errB
				}
			}
			return false
		}
		if aOK != bOK {
			return aOK
		}
		if aOK {
			cmp, err := compareValues(a, b)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if cmp != 0 {
				if order.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return s.ID(entities[i]) < s.ID(entities[j])
	})
	return sortErr
}

func (s Schema[T]) fieldValue(e T, field string) (any, bool, error) {
	fn, ok := s.Fields[field]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s has no queryable field %q", domain.ErrUnsupportedFilter, s.Kind, field)
	}
	val, set := fn(e)
	return val, set, nil
}

func valuesEqual(a, b any) bool {
	if cmp, err := compareValues(a, b); err == nil {
		return cmp == 0
	}
	return false
}

// compareValues orders two scalar values of compatible type. Strings, times
// and numbers are comparable; anything else is outside the filter algebra.
func compareValues(a, b any) (int, error) {
	if at, ok := a.(time.Time); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, fmt.Errorf("%w: cannot compare time with %T", domain.ErrUnsupportedFilter, b)
		}
		switch {
		case at.Before(bt):
			return -1, nil
		case at.After(bt):
			return 1, nil
		default:
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: cannot compare string with %T", domain.ErrUnsupportedFilter, b)
		}
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, aOK := toFloat(a)
	bf, bOK := toFloat(b)
	if aOK && bOK {
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", domain.ErrUnsupportedFilter, a, b)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
