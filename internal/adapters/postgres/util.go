package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/procindex/internal/domain"
	"gorm.io/gorm"
)

// mapError folds backend faults into the two kinds the engine distinguishes:
// transient (retryable) and integrity (permanent).
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if errors.Is(err, gorm.ErrInvalidData) || errors.Is(err, gorm.ErrInvalidValue) {
		return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
