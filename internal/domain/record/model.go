package record

import (
	"encoding/json"
	"time"

	"vetsync/internal/domain/entity"
)

// Status — состояние синхронизации локальной записи.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// Meta — служебные поля синхронизации.
type Meta struct {
	LastModified time.Time `json:"last_modified"`
	SyncStatus   Status    `json:"sync_status"`
	TenantID     string    `json:"tenant_id"`
	PracticeID   int64     `json:"practice_id"`
	UserID       int64     `json:"user_id"`
	Deleted      bool      `json:"deleted,omitempty"`
	// BaseVersion и BaseUpdatedAt — версия сервера, от которой отталкивается локальная копия.
	BaseVersion   int64     `json:"base_version"`
	BaseUpdatedAt time.Time `json:"base_updated_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// Record — локальная копия сущности клиники.
type Record struct {
	ID   string          `json:"id"`
	Type entity.Type     `json:"type"`
	Data json.RawMessage `json:"data"`
	Meta Meta            `json:"metadata"`
}

func (r *Record) IsTemp() bool {
	return entity.IsTempID(r.ID)
}

func (r *Record) Clone() *Record {
	c := *r
	c.Data = append(json.RawMessage(nil), r.Data...)
	return &c
}

type Filter struct {
	Status         Status
	IncludeDeleted bool
}

// Counts — счётчики записей по статусам для интерфейса.
type Counts struct {
	Pending int `json:"pending_count"`
	Synced  int `json:"synced_count"`
	Error   int `json:"error_count"`
}

type ChangeKind string

const (
	ChangeSaved    ChangeKind = "saved"
	ChangeRemoved  ChangeKind = "removed"
	ChangeSynced   ChangeKind = "synced"
	ChangeError    ChangeKind = "error"
	ChangePurged   ChangeKind = "purged"
	ChangeRemapped ChangeKind = "remapped"
)

// Change — уведомление подписчиков об изменении записи.
type Change struct {
	Kind   ChangeKind
	Type   entity.Type
	ID     string
	PrevID string
	Record *Record
}
