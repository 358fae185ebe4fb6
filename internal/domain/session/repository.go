package session

import (
	"context"
	"time"

	"vetsync/internal/domain/tenant"
)

type Repository interface {
	Create(ctx context.Context, staffID int64, tokenHash string, expiresAt time.Time) error
	// Validate возвращает область сотрудника по хэшу действующего токена.
	Validate(ctx context.Context, tokenHash string) (tenant.Scope, error)
	Revoke(ctx context.Context, tokenHash string) error
}
