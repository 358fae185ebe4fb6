package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/app/client/config"
	"vetsync/internal/app/client/facade"
	"vetsync/internal/domain/conflict"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/network"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
	"vetsync/internal/domain/sync"
	"vetsync/internal/domain/tenant"
	"vetsync/internal/infrastructure/storage/sqlite"
)

// App связывает локальное хранилище, очередь, монитор сети и движок синхронизации.
type App struct {
	config    *config.Config
	log       *slog.Logger
	db        *sqlite.Storage
	http      *HTTPClient
	sessions  *SessionStore
	store     *record.Store
	queue     *queue.Queue
	conflicts *conflict.Service
	monitor   *network.Monitor
	engine    *sync.Engine
	facades   *facade.Set
	notifier  facade.Notifier

	unsubscribe func()
	wg          gosync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, notifier facade.Notifier) (*App, error) {
	db, err := sqlite.New(ctx, cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	httpCl := NewHTTPClient(cfg, log)
	sessions := NewSessionStore(cfg.SessionPath)
	if sess, err := sessions.Load(); err == nil {
		httpCl.SetSession(sess.Token, sess.Scope)
		log.Debug("Сессия загружена из файла", "scope", sess.Scope.String())
	} else if !errors.Is(err, ErrNoSession) {
		log.Warn("Не удалось загрузить сессию", "error", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	online := httpCl.Probe(probeCtx) == nil
	cancel()

	store := record.NewStore(sqlite.NewRecordRepository(db, log), log)
	q := queue.NewQueue(sqlite.NewQueueRepository(db, log), queue.Config{
		MaxRetries:     cfg.Sync.MaxRetries,
		InitialBackoff: cfg.Sync.InitialBackoff,
		MaxBackoff:     cfg.Sync.MaxBackoff,
		Multiplier:     2,
		Jitter:         0.1,
	}, log)
	conflicts := conflict.NewService(sqlite.NewConflictRepository(db, log), store, q, db, log)
	monitor := network.NewMonitor(httpCl, network.Config{
		Debounce:      cfg.Sync.NetworkDebounce,
		PollInterval:  cfg.Sync.ProbeInterval,
		InitialOnline: online,
	}, log)

	engine := sync.NewEngine(sync.Deps{
		Store:     store,
		Queue:     q,
		Conflicts: conflicts,
		Remote:    httpCl,
		Monitor:   monitor,
		Tx:        db,
		Resolver:  sessions,
	}, sync.Config{
		Interval:            cfg.Sync.Interval,
		Debounce:            cfg.Sync.Debounce,
		Cooldown:            cfg.Sync.Cooldown,
		FullRefreshInterval: cfg.Sync.FullRefreshInterval,
		OpTimeout:           cfg.Sync.RequestTimeout,
		BatchSize:           cfg.Sync.BatchSize,
	}, log)

	if notifier == nil {
		notifier = facade.NotifierFunc(func(facade.Notification) {})
	}

	app := &App{
		config:    cfg,
		log:       log,
		db:        db,
		http:      httpCl,
		sessions:  sessions,
		store:     store,
		queue:     q,
		conflicts: conflicts,
		monitor:   monitor,
		engine:    engine,
		notifier:  notifier,
		facades: facade.NewSet(facade.Deps{
			Store:    store,
			Queue:    q,
			Tx:       db,
			Monitor:  monitor,
			Notifier: notifier,
			Log:      log,
		}),
	}
	app.unsubscribe = store.Subscribe(app.onChange)

	return app, nil
}

// onChange сообщает пользователю о записях, которые не удалось синхронизировать.
func (a *App) onChange(ch record.Change) {
	switch ch.Kind {
	case record.ChangeError:
		msg := "синхронизация не удалась"
		if ch.Record != nil && ch.Record.Meta.LastError != "" {
			msg = ch.Record.Meta.LastError
		}
		a.notifier.Notify(facade.Notification{
			Level:   facade.LevelError,
			Title:   ch.Type.DisplayName(),
			Message: fmt.Sprintf("Запись %s: %s", ch.ID, msg),
		})
	case record.ChangeRemapped:
		a.log.Debug("Запись получила серверный id", "type", ch.Type, "from", ch.PrevID, "to", ch.ID)
	}
}

// Scoped привязывает к контексту область из сохранённой сессии.
func (a *App) Scoped(ctx context.Context) (context.Context, error) {
	if _, err := tenant.FromContext(ctx); err == nil {
		return ctx, nil
	}
	scope, err := a.sessions.Resolve(ctx)
	if errors.Is(err, ErrNoSession) {
		return ctx, fmt.Errorf("требуется вход: выполните vetsync login: %w", tenant.ErrScope)
	}
	if err != nil {
		return ctx, err
	}
	return tenant.WithScope(ctx, scope), nil
}

// Login выполняет вход и сохраняет сессию.
func (a *App) Login(ctx context.Context, tenantID, login, password string) (*Session, error) {
	sess, err := a.http.Login(ctx, tenantID, login, password)
	if err != nil {
		return nil, fmt.Errorf("ошибка аутентификации: %w", err)
	}
	if err := a.sessions.Save(sess); err != nil {
		return nil, err
	}
	a.monitor.Force(true)
	a.log.Info("Вход выполнен", "scope", sess.Scope.String())
	return sess, nil
}

func (a *App) Register(ctx context.Context, tenantID string, practiceID int64, login, password string) (int64, error) {
	id, err := a.http.Register(ctx, tenantID, practiceID, login, password)
	if err != nil {
		return 0, fmt.Errorf("ошибка регистрации: %w", err)
	}
	a.log.Info("Сотрудник зарегистрирован", "tenant", tenantID, "practice", practiceID, "user_id", id)
	return id, nil
}

// Logout отзывает токен на сервере и удаляет сохранённую сессию.
// Локальные данные остаются в своём разделе.
func (a *App) Logout(ctx context.Context) error {
	if a.monitor.Online() {
		if err := a.http.Logout(ctx); err != nil {
			a.log.Warn("Не удалось отозвать сессию на сервере", "error", err)
		}
	}
	a.http.SetSession("", tenant.Scope{})
	return a.sessions.Clear()
}

func (a *App) Session() (*Session, error) {
	return a.sessions.Load()
}

func (a *App) Facades() *facade.Set {
	return a.facades
}

func (a *App) Online() bool {
	return a.monitor.Online()
}

func (a *App) SyncNow(ctx context.Context) (*sync.Result, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.SyncNow(ctx)
}

func (a *App) Refresh(ctx context.Context) (*sync.Result, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.Refresh(ctx)
}

func (a *App) SyncStatus() sync.Status {
	return a.engine.Status()
}

// Counts возвращает счётчики по всем типам сущностей.
func (a *App) Counts(ctx context.Context) (map[entity.Type]record.Counts, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[entity.Type]record.Counts, len(entity.AllTypes()))
	for _, typ := range entity.AllTypes() {
		c, err := a.store.Counts(ctx, typ)
		if err != nil {
			return nil, err
		}
		out[typ] = c
	}
	return out, nil
}

func (a *App) Conflicts(ctx context.Context) ([]*conflict.Conflict, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.conflicts.GetUnresolvedConflicts(ctx)
}

func (a *App) ConflictHistory(ctx context.Context, typ entity.Type, id string) ([]*conflict.Conflict, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.conflicts.History(ctx, typ, id)
}

func (a *App) ResolveConflict(ctx context.Context, id string, strategy conflict.Strategy, merged []byte) (*conflict.Conflict, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.conflicts.ResolveConflict(ctx, id, strategy, merged)
}

func (a *App) BulkResolveConflicts(ctx context.Context, ids []string, strategy conflict.Strategy) ([]*conflict.Conflict, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return nil, err
	}
	return a.conflicts.BulkResolveConflicts(ctx, ids, strategy)
}

func (a *App) QueueStats(ctx context.Context) (queue.Stats, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return queue.Stats{}, err
	}
	return a.queue.Stats(ctx)
}

// RetryOperation возвращает исчерпавшую попытки операцию в очередь.
func (a *App) RetryOperation(ctx context.Context, id int64) error {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return err
	}
	return a.queue.Retry(ctx, id)
}

func (a *App) PurgeQueue(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, err := a.Scoped(ctx)
	if err != nil {
		return 0, err
	}
	if olderThan <= 0 {
		olderThan = a.config.Sync.PurgeAfter
	}
	return a.queue.Purge(ctx, olderThan)
}

// Run обслуживает фоновую синхронизацию до сигнала завершения или отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.Scoped(ctx); err != nil {
		return err
	}

	progress, unsubscribe := a.engine.Subscribe()
	defer unsubscribe()

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.engine.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.housekeeping(ctx)
	}()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"online", a.monitor.Online(),
	)

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			a.log.Info("Клиент остановлен")
			return nil
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			a.log.Debug("Прогресс синхронизации",
				"state", p.State,
				"processed", p.Processed,
				"total", p.Total,
				"conflicts", p.Conflicts,
			)
		}
	}
}

// housekeeping периодически удаляет завершённые операции.
func (a *App) housekeeping(ctx context.Context) {
	if a.config.Sync.PurgeAfter <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.PurgeQueue(ctx, a.config.Sync.PurgeAfter)
			if err != nil {
				a.log.Warn("Не удалось очистить очередь", "error", err)
				continue
			}
			if n > 0 {
				a.log.Info("Очередь очищена", "removed", n)
			}
		}
	}
}

func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.db.Close()
}
