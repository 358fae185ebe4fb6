// Package server запускает HTTP-сервер записей клиник.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/app/server/api"
	"vetsync/internal/app/server/config"
	"vetsync/internal/infrastructure/storage/postgres"
)

const sessionCleanupInterval = time.Hour

type App struct {
	cfg      *config.Config
	log      *slog.Logger
	storage  *postgres.Storage
	sessions *postgres.SessionRepository
	http     *http.Server
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := postgres.New(ctx, cfg.DB.DatabaseURI, log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	return &App{
		cfg:      cfg,
		log:      log,
		storage:  storage,
		sessions: postgres.NewSessionRepository(storage, log),
		http: &http.Server{
			Addr:         cfg.Server.RunAddress,
			Handler:      api.New(storage, cfg, log),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно завершает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", "addr", a.cfg.Server.RunAddress, "env", a.cfg.Env)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go a.cleanupSessions(ctx)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

func (a *App) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.sessions.DeleteExpired(ctx)
			if err != nil {
				a.log.Warn("expired sessions cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				a.log.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (a *App) Close() error {
	return a.storage.Close()
}
