// Package txhook откладывает побочные эффекты до фиксации транзакции, начатой выше по стеку.
package txhook

import (
	"context"
	"sync"
)

type contextKey struct{}

// Hooks — функции, выполняемые после успешного commit.
type Hooks struct {
	mu  sync.Mutex
	fns []func()
}

// With возвращает контекст с новым набором хуков. Если набор уже есть, возвращает его.
func With(ctx context.Context) (context.Context, *Hooks) {
	if h, ok := ctx.Value(contextKey{}).(*Hooks); ok {
		return ctx, h
	}
	h := &Hooks{}
	return context.WithValue(ctx, contextKey{}, h), h
}

// AfterCommit регистрирует fn в транзакции из ctx, а без транзакции вызывает сразу.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(contextKey{}).(*Hooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run выполняет накопленные хуки в порядке регистрации.
func (h *Hooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Discard сбрасывает хуки после отката.
func (h *Hooks) Discard() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}
