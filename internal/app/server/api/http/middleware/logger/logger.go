package logger

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// Logger пишет по строке на каждую операцию API.
type Logger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
	}
}

// levelFor: 5xx — ошибка сервера, 409 — расхождение версий, о котором стоит знать.
func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusConflict:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		started := time.Now()
		next(ctx)

		attrs := []any{
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", ctx.Status()),
			slog.Duration("duration", time.Since(started)),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if op := ctx.Operation(); op != nil {
			attrs = append(attrs, slog.String("operation", op.OperationID))
		}
		if id := chimw.GetReqID(ctx.Context()); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if tenantID := ctx.Header("X-Tenant-Id"); tenantID != "" {
			attrs = append(attrs,
				slog.String("tenant", tenantID),
				slog.String("practice", ctx.Header("X-Practice-Id")),
			)
		}

		l.log.Log(ctx.Context(), levelFor(ctx.Status()), "HTTP request", attrs...)
	}
}
