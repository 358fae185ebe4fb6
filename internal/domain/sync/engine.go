package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/tenant"

	"golang.org/x/exp/slog"
)

// Config — настройки движка синхронизации.
type Config struct {
	Interval            time.Duration
	Debounce            time.Duration
	Cooldown            time.Duration
	FullRefreshInterval time.Duration
	OpTimeout           time.Duration
	BatchSize           int
}

func DefaultConfig() Config {
	return Config{
		Interval:            30 * time.Second,
		Debounce:            2 * time.Second,
		Cooldown:            time.Second,
		FullRefreshInterval: 15 * time.Minute,
		OpTimeout:           15 * time.Second,
		BatchSize:           50,
	}
}

// Deps — зависимости движка.
type Deps struct {
	Store     Store
	Queue     Queue
	Conflicts Conflicts
	Remote    Remote
	Monitor   Monitor
	Tx        Transactor
	Resolver  tenant.Resolver
}

// Engine выполняет проходы push/pull/reconcile. Одновременно идёт не больше одного прохода.
type Engine struct {
	d   Deps
	cfg Config
	log *slog.Logger
	now func() time.Time

	running atomic.Bool
	kick    chan struct{}

	mu      gosync.RWMutex
	status  Status
	subs    map[int]chan Progress
	nextSub int
	// cursors — updated_at последней полученной серверной записи по области и типу.
	cursors map[cursorKey]time.Time
}

type cursorKey struct {
	tenant   string
	practice int64
	typ      entity.Type
}

func NewEngine(deps Deps, cfg Config, log *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}

	e := &Engine{
		d:       deps,
		cfg:     cfg,
		log:     log.With("component", "sync_engine"),
		now:     time.Now,
		kick:    make(chan struct{}, 1),
		status:  Status{State: StateIdle},
		subs:    make(map[int]chan Progress),
		cursors: make(map[cursorKey]time.Time),
	}
	deps.Queue.OnEnqueue(func(queue.Operation) {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	})
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SyncNow запускает проход по запросу пользователя. Если проход уже идёт, возвращает nil, nil.
func (e *Engine) SyncNow(ctx context.Context) (*Result, error) {
	return e.explicit(ctx, false)
}

// Refresh запускает проход с полной загрузкой серверного состояния.
func (e *Engine) Refresh(ctx context.Context) (*Result, error) {
	return e.explicit(ctx, true)
}

func (e *Engine) explicit(ctx context.Context, full bool) (*Result, error) {
	e.Resume()
	res, err := e.pass(ctx, passOptions{fullRefresh: full, reason: "user"})
	if errors.Is(err, ErrBusy) {
		e.log.Debug("sync trigger ignored, pass in progress")
		return nil, nil
	}
	return res, err
}

// Cancel не прерывает текущий проход, но не даёт начаться следующему автоматическому.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Cancelled = true
	if !e.running.Load() {
		e.status.State = StateCancelled
	}
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Cancelled = false
	if e.status.State == StateCancelled {
		e.status.State = StateIdle
	}
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.Running = e.running.Load()
	return st
}

// Subscribe возвращает поток прогресса. Медленный подписчик пропускает промежуточные значения.
func (e *Engine) Subscribe() (<-chan Progress, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan Progress, 16)
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

// Run обслуживает автоматические триггеры до отмены ctx: восстановление сети, таймер
// и постановку операций в очередь.
func (e *Engine) Run(ctx context.Context) {
	transitions, unsubscribe := e.d.Monitor.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	var (
		debounce  *time.Timer
		debounceC <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	e.log.Info("sync loop started", "interval", e.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync loop stopped")
			return
		case tr, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			if tr.Online() {
				e.trigger(ctx, "reconnect", false)
			}
		case <-ticker.C:
			if e.d.Monitor.Online() && e.hasWork(ctx) {
				e.trigger(ctx, "interval", e.refreshDue())
			}
		case <-e.kick:
			if e.cfg.Debounce <= 0 {
				e.trigger(ctx, "enqueue", false)
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(e.cfg.Debounce)
			} else {
				debounce.Reset(e.cfg.Debounce)
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			e.trigger(ctx, "enqueue", false)
		}
	}
}

func (e *Engine) trigger(ctx context.Context, reason string, full bool) {
	if !e.d.Monitor.Online() {
		return
	}
	_, err := e.pass(ctx, passOptions{fullRefresh: full, automatic: true, reason: reason})
	switch {
	case err == nil, errors.Is(err, ErrBusy), errors.Is(err, ErrCancelled), errors.Is(err, errCooldown):
	default:
		e.log.Error("sync pass failed", "reason", reason, "error", err)
	}
}

func (e *Engine) hasWork(ctx context.Context) bool {
	if e.refreshDue() {
		return true
	}
	ctx, err := e.bindScope(ctx)
	if err != nil {
		return false
	}
	n, err := e.d.Queue.Ready(ctx)
	if err != nil {
		e.log.Warn("failed to inspect queue", "error", err)
		return false
	}
	return n > 0
}

func (e *Engine) refreshDue() bool {
	if e.cfg.FullRefreshInterval <= 0 {
		return false
	}
	e.mu.RLock()
	last := e.status.LastRefreshAt
	e.mu.RUnlock()
	return last.IsZero() || e.now().Sub(last) >= e.cfg.FullRefreshInterval
}

var errCooldown = errors.New("sync cooldown")

type passOptions struct {
	fullRefresh bool
	automatic   bool
	reason      string
}

func (e *Engine) pass(ctx context.Context, opts passOptions) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.running.Store(false)

	if opts.automatic {
		e.mu.RLock()
		cancelled := e.status.Cancelled
		last := e.status.LastSyncAt
		e.mu.RUnlock()
		if cancelled {
			return nil, ErrCancelled
		}
		if !last.IsZero() && e.now().Sub(last) < e.cfg.Cooldown {
			return nil, errCooldown
		}
	}

	started := e.now()
	res := &Result{StartedAt: started}
	e.log.Info("sync pass started", "reason", opts.reason)

	p := &passState{
		res:      res,
		touched:  make(map[key]struct{}),
		tried:    make(map[int64]struct{}),
		remapped: make(map[key]string),
	}

	e.setState(StatePreparing, res)
	ctx, err := e.prepare(ctx, p)
	if err == nil {
		err = e.push(ctx, p)
	}
	if err == nil {
		err = e.pullAndReconcile(ctx, p, opts.fullRefresh || e.refreshDue(), started)
	}

	return e.finish(res, err), err
}

// prepare подтверждает область арендатора и возвращает зависшие операции в очередь.
// Успешная проба засчитывается проходу сразу, не дожидаясь окна монитора.
func (e *Engine) prepare(ctx context.Context, p *passState) (context.Context, error) {
	ctx, err := e.bindScope(ctx)
	if err != nil {
		return ctx, err
	}
	if _, err := e.d.Queue.RecoverInFlight(ctx); err != nil {
		return ctx, err
	}
	if e.d.Monitor.Online() {
		return ctx, nil
	}
	if !e.d.Monitor.Check(ctx) {
		return ctx, ErrOffline
	}
	p.reachable = true
	return ctx, nil
}

func (e *Engine) bindScope(ctx context.Context) (context.Context, error) {
	if _, err := tenant.FromContext(ctx); err == nil {
		return ctx, nil
	}
	if e.d.Resolver == nil {
		return ctx, tenant.ErrScope
	}
	scope, err := e.d.Resolver.Resolve(ctx)
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", tenant.ErrScope, err)
	}
	if err := scope.Validate(); err != nil {
		return ctx, err
	}
	return tenant.WithScope(ctx, scope), nil
}

func (e *Engine) finish(res *Result, err error) *Result {
	res.FinishedAt = e.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	res.Err = err

	switch {
	case err != nil:
		res.State = StateError
	case res.Failed > 0 || res.Conflicts > 0:
		res.State = StatePartialSuccess
	default:
		res.State = StateSuccess
	}

	e.setState(res.State, res)

	e.mu.Lock()
	e.status.LastResult = res
	e.status.LastSyncAt = res.FinishedAt
	e.status.TotalPasses++
	if err != nil {
		e.status.TotalErrors++
	}
	if e.status.Cancelled {
		e.status.State = StateCancelled
	} else {
		e.status.State = StateIdle
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("sync pass aborted", "error", err, "processed", res.Processed, "total", res.Total)
	} else {
		e.log.Info("sync pass finished",
			"state", res.State,
			"successful", res.Successful,
			"failed", res.Failed,
			"conflicts", res.Conflicts,
			"pulled", res.Pulled,
			"duration", res.Duration,
		)
	}
	return res
}

func (e *Engine) setState(state State, res *Result) {
	p := res.progress(state)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.status.State = state
	e.status.Progress = p
	for _, ch := range e.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (e *Engine) markRefreshed(at time.Time) {
	e.mu.Lock()
	e.status.LastRefreshAt = at
	e.mu.Unlock()
}

func (e *Engine) cursor(k cursorKey) time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursors[k]
}

func (e *Engine) advance(k cursorKey, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if at.After(e.cursors[k]) {
		e.cursors[k] = at
	}
}
