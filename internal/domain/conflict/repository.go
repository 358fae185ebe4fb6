package conflict

import (
	"context"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

type Repository interface {
	Insert(ctx context.Context, scope tenant.Scope, c *Conflict) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Conflict, error)
	// FindUnresolved возвращает ErrNotFound, если открытого конфликта по сущности нет.
	FindUnresolved(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) (*Conflict, error)
	ListUnresolved(ctx context.Context, scope tenant.Scope) ([]*Conflict, error)
	ListByEntity(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) ([]*Conflict, error)
	// Refresh обновляет версии открытого конфликта.
	Refresh(ctx context.Context, scope tenant.Scope, c *Conflict) error
	// Resolve фиксирует решение только для открытого конфликта, иначе ErrAlreadyResolved.
	Resolve(ctx context.Context, scope tenant.Scope, id string, strategy Strategy, at time.Time, by int64) error
}
