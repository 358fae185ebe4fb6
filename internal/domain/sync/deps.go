package sync

import (
	"context"
	"encoding/json"
	"time"

	"vetsync/internal/domain/conflict"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/network"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
)

// Remote — удалённый сервис сущностей. Единственная точка сетевого обмена движка.
type Remote interface {
	// Create идемпотентен по clientID: повтор возвращает уже созданную запись.
	Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, error)
	Update(ctx context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error)
	Delete(ctx context.Context, typ entity.Type, id, baseVersion int64) error
	Get(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error)
	List(ctx context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error)
}

type Store interface {
	Find(ctx context.Context, typ entity.Type, id string) (*record.Record, error)
	List(ctx context.Context, typ entity.Type, filter record.Filter) ([]*record.Record, error)
	MarkSynced(ctx context.Context, typ entity.Type, id string, remote *entity.RemoteRecord) error
	MarkError(ctx context.Context, typ entity.Type, id string, cause string) error
	SetBaseline(ctx context.Context, typ entity.Type, id string, version int64, updatedAt time.Time) error
	Adopt(ctx context.Context, remote *entity.RemoteRecord) error
	Purge(ctx context.Context, typ entity.Type, id string) error
	Remap(ctx context.Context, typ entity.Type, oldID, newID string) error
}

type Queue interface {
	OnEnqueue(fn func(queue.Operation))
	RecoverInFlight(ctx context.Context) (int64, error)
	DequeueBatch(ctx context.Context, max int, opts ...queue.DequeueOption) ([]*queue.Operation, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) (*queue.Operation, error)
	Reject(ctx context.Context, id int64, cause error) (*queue.Operation, error)
	ConfirmCreate(ctx context.Context, typ entity.Type, entityID string) (bool, error)
	Supersede(ctx context.Context, id int64, reason string) error
	Release(ctx context.Context, id int64) error
	Outstanding(ctx context.Context, typ entity.Type, entityID string) (int, error)
	Ready(ctx context.Context) (int, error)
	Exhausted(op *queue.Operation) bool
}

type Conflicts interface {
	Detect(ctx context.Context, local *record.Record, remote *entity.RemoteRecord) (*conflict.Conflict, bool, error)
	HasUnresolved(ctx context.Context, typ entity.Type, entityID string) (bool, error)
}

type Monitor interface {
	Online() bool
	Check(ctx context.Context) bool
	Subscribe() (<-chan network.Transition, func())
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
