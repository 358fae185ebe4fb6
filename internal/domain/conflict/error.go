package conflict

import "errors"

var (
	ErrNotFound             = errors.New("conflict not found")
	ErrAlreadyResolved      = errors.New("conflict already resolved")
	ErrInvalidStrategy      = errors.New("invalid resolution strategy")
	ErrMergePayloadRequired = errors.New("merge strategy requires a payload")
	ErrNotPending           = errors.New("local record is not pending")
)
