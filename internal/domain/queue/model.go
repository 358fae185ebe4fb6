package queue

import (
	"encoding/json"
	"time"

	"vetsync/internal/domain/entity"
)

// Kind — вид изменения.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in-flight"
	StatusFailed   Status = "failed"
	StatusDone     Status = "done"
)

// Operation — отложенное изменение, ожидающее отправки на сервер.
type Operation struct {
	ID            int64           `json:"id"`
	EntityType    entity.Type     `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Kind          Kind            `json:"operation"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"timestamp"`
	UpdatedAt     time.Time       `json:"updated_at"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	Status        Status          `json:"status"`
	NextAttemptAt time.Time       `json:"next_attempt_at,omitempty"`
}

// Stats — счётчики операций по статусам.
type Stats struct {
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Failed   int `json:"failed"`
	Done     int `json:"done"`
}

type entityKey struct {
	typ entity.Type
	id  string
}

func (op *Operation) key() entityKey {
	return entityKey{typ: op.EntityType, id: op.EntityID}
}
