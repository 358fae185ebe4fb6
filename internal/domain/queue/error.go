package queue

import "errors"

var (
	ErrNotFound     = errors.New("operation not found")
	ErrInvalidKind  = errors.New("invalid operation kind")
	ErrNotRetryable = errors.New("operation is not in failed state")
)
