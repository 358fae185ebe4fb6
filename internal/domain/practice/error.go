package practice

import (
	"errors"
	"fmt"

	"vetsync/internal/domain/entity"
)

var (
	ErrNotFound        = errors.New("practice record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidData     = errors.New("invalid record data")
)

// ConflictError несёт текущую версию записи, с которой разошёлся клиент.
type ConflictError struct {
	Current *entity.RemoteRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s/%d is at version %d", ErrVersionConflict, e.Current.Type, e.Current.ID, e.Current.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
