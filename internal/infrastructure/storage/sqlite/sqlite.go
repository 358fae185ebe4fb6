// Package sqlite — локальное хранилище клиента: записи, очередь операций и конфликты.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"vetsync/internal/infrastructure/migration"
	"vetsync/internal/utils/txhook"
	"vetsync/migrations"
)

type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

// New открывает базу по пути path и накатывает миграции клиента.
func New(ctx context.Context, path string, log *slog.Logger) (*Storage, error) {
	mg := migration.NewMigration(migrations.Client, migrations.ClientDir, migration.SQLiteURL(path), nil)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("ошибка миграции локальной базы: %w", err)
	}

	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	return &Storage{db: db, log: log.With("component", "sqlite_storage")}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx выполняет fn в транзакции. Вложенный вызов использует уже открытую транзакцию,
// а отложенные через txhook уведомления выполняются после commit внешней.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	ctx, hooks := txhook.With(ctx)
	ctx = context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			hooks.Discard()
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.log.Error("failed to rollback transaction", "error", rerr)
		}
		hooks.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		hooks.Discard()
		return fmt.Errorf("commit tx: %w", err)
	}

	hooks.Run()
	return nil
}

func (s *Storage) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
