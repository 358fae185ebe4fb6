package record

import (
	"context"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

// Repository хранит записи в разделах (tenant, practice, entity type).
type Repository interface {
	Get(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) (*Record, error)
	Upsert(ctx context.Context, scope tenant.Scope, rec *Record) error
	List(ctx context.Context, scope tenant.Scope, typ entity.Type, filter Filter) ([]*Record, error)
	Delete(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) error
	Counts(ctx context.Context, scope tenant.Scope, typ entity.Type) (Counts, error)
	// RemapID атомарно заменяет временный id на серверный в записях, ссылках и очереди операций.
	RemapID(ctx context.Context, scope tenant.Scope, typ entity.Type, oldID, newID string) error
}
