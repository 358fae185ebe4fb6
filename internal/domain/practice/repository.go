package practice

import (
	"context"
	"encoding/json"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

// Repository хранит записи клиники. Все методы ограничены арендатором и клиникой из scope.
type Repository interface {
	// Insert создаёт запись. При повторе clientID возвращает существующую и created=false.
	Insert(ctx context.Context, scope tenant.Scope, typ entity.Type, clientID string, data json.RawMessage) (rec *entity.RemoteRecord, created bool, err error)
	// Get возвращает запись вместе с удалёнными.
	Get(ctx context.Context, scope tenant.Scope, typ entity.Type, id int64) (*entity.RemoteRecord, error)
	// Update заменяет данные, если текущая версия равна baseVersion (baseVersion <= 0 — без проверки).
	// Несовпадение версии — ErrVersionConflict.
	Update(ctx context.Context, scope tenant.Scope, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error)
	// SoftDelete помечает запись удалённой с теми же правилами версии, что и Update.
	SoftDelete(ctx context.Context, scope tenant.Scope, typ entity.Type, id, baseVersion int64) error
	// ListSince возвращает записи, изменённые строго после since, по возрастанию updated_at.
	ListSince(ctx context.Context, scope tenant.Scope, typ entity.Type, since time.Time, limit int) ([]*entity.RemoteRecord, error)
}
