package tenant

import (
	"context"
	"fmt"
)

// Scope — тройка арендатор/клиника/пользователь, которой принадлежат все локальные данные.
type Scope struct {
	TenantID   string `json:"tenant_id"`
	PracticeID int64  `json:"practice_id"`
	UserID     int64  `json:"user_id"`
}

// Validate проверяет, что все части области заданы.
func (s Scope) Validate() error {
	switch {
	case s.TenantID == "":
		return fmt.Errorf("%w: empty tenant id", ErrScope)
	case s.PracticeID <= 0:
		return fmt.Errorf("%w: invalid practice id %d", ErrScope, s.PracticeID)
	case s.UserID <= 0:
		return fmt.Errorf("%w: invalid user id %d", ErrScope, s.UserID)
	}
	return nil
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%d/%d", s.TenantID, s.PracticeID, s.UserID)
}

// SameTenant сообщает, относятся ли области к одному разделу хранилища.
func (s Scope) SameTenant(o Scope) bool {
	return s.TenantID == o.TenantID && s.PracticeID == o.PracticeID
}

type contextKey string

const scopeKey contextKey = "tenantScope"

// WithScope возвращает контекст с привязанной областью.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext извлекает область из контекста. Отсутствующая или неполная область — ErrScope.
func FromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey).(Scope)
	if !ok {
		return Scope{}, fmt.Errorf("%w: no scope bound", ErrScope)
	}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// Resolver восстанавливает область из состояния сессии.
type Resolver interface {
	Resolve(ctx context.Context) (Scope, error)
}

// ResolverFunc адаптирует функцию к Resolver.
type ResolverFunc func(ctx context.Context) (Scope, error)

func (f ResolverFunc) Resolve(ctx context.Context) (Scope, error) {
	return f(ctx)
}
