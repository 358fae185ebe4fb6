// Package logger настраивает slog под окружение запуска.
package logger

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"

	"vetsync/internal/app/server/config"
)

// New возвращает логгер окружения env: локально — цветной вывод, иначе JSON.
func New(env string) *slog.Logger {
	return NewWithLevel(env, "")
}

// NewWithLevel как New, но level ("debug", "info", "warn", "error") переопределяет уровень окружения.
func NewWithLevel(env, level string) *slog.Logger {
	return newLogger(os.Stderr, env, level)
}

func newLogger(out io.Writer, env, level string) *slog.Logger {
	lvl := slog.LevelDebug
	if env == config.EnvProd {
		lvl = slog.LevelInfo
	}
	if l, ok := parseLevel(level); ok {
		lvl = l
	}

	if env == config.EnvLocal {
		return slog.New(NewPrettyHandler(out, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

func setupPrettySlog() *slog.Logger {
	return slog.New(NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
