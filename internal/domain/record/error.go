package record

import "errors"

var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidType = errors.New("invalid entity type")
)
