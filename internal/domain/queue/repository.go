package queue

import (
	"context"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

// Repository — журнал операций одного арендатора.
type Repository interface {
	Insert(ctx context.Context, scope tenant.Scope, op *Operation) (int64, error)
	Get(ctx context.Context, scope tenant.Scope, id int64) (*Operation, error)
	// Outstanding возвращает все незавершённые операции по возрастанию id.
	Outstanding(ctx context.Context, scope tenant.Scope) ([]*Operation, error)
	Save(ctx context.Context, scope tenant.Scope, op *Operation) error
	CountOutstanding(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) (int, error)
	// CloseEntity переводит все незавершённые операции сущности в done с пометкой note.
	CloseEntity(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID, note string, at time.Time) (int, error)
	CountByStatus(ctx context.Context, scope tenant.Scope) (map[Status]int, error)
	DeleteDone(ctx context.Context, scope tenant.Scope, before time.Time) (int64, error)
	ResetInFlight(ctx context.Context, scope tenant.Scope, at time.Time) (int64, error)
}
