package sync

import (
	"errors"
	"fmt"
	"net/http"

	"vetsync/internal/domain/entity"
)

var (
	// ErrBusy — проход уже выполняется. Наружу не возвращается.
	ErrBusy             = errors.New("sync pass already running")
	ErrOffline          = errors.New("remote service unreachable")
	ErrTransport        = errors.New("transport error")
	ErrConflictDetected = errors.New("remote record changed since baseline")
	ErrRemoteNotFound   = errors.New("remote record not found")
	ErrCancelled        = errors.New("sync cancelled")
	ErrUnauthorized     = errors.New("remote service rejected credentials")
)

// TransportError — сбой сети или удалённого сервиса на отдельной операции.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ConflictError — ответ 409 с текущей серверной версией.
type ConflictError struct {
	Remote *entity.RemoteRecord
}

func (e *ConflictError) Error() string {
	if e.Remote == nil {
		return ErrConflictDetected.Error()
	}
	return fmt.Sprintf("%s: %s/%d at version %d", ErrConflictDetected, e.Remote.Type, e.Remote.ID, e.Remote.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictDetected
}

// RejectedError — сервер отклонил данные операции (4xx, кроме 404 и 409).
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by remote service: status %d: %s", e.Status, e.Message)
}

// Unauthorized сообщает, что отклонена сессия, а не данные операции.
func (e *RejectedError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}
