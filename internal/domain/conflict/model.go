package conflict

import (
	"fmt"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/record"
)

// Strategy — способ разрешения конфликта.
type Strategy string

const (
	StrategyLocal  Strategy = "local"
	StrategyRemote Strategy = "remote"
	StrategyMerge  Strategy = "merge"
	StrategyManual Strategy = "manual"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyLocal, StrategyRemote, StrategyMerge, StrategyManual:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Conflict — расхождение между локальной pending-записью и изменённой на сервере версией.
type Conflict struct {
	ID            string               `json:"id"`
	EntityType    entity.Type          `json:"entity_type"`
	EntityID      string               `json:"entity_id"`
	LocalVersion  *record.Record       `json:"local_version"`
	RemoteVersion *entity.RemoteRecord `json:"remote_version"`
	DetectedAt    time.Time            `json:"detected_at"`
	Resolution    *Strategy            `json:"resolution,omitempty"`
	ResolvedAt    *time.Time           `json:"resolved_at,omitempty"`
	ResolvedBy    int64                `json:"resolved_by,omitempty"`
}

func (c *Conflict) Resolved() bool {
	return c.Resolution != nil
}
