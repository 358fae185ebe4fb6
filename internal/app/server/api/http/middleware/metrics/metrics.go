// Package metrics — Prometheus-метрики сервера записей.
package metrics

import (
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vetsync/internal/domain/entity"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests",
		},
		[]string{"operation", "method", "status_code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vetsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	VersionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetsync",
			Subsystem: "records",
			Name:      "version_conflicts_total",
			Help:      "Writes rejected because the base version was stale",
		},
		[]string{"entity_type"},
	)
)

// RecordConflict учитывает отклонённую по версии запись.
func RecordConflict(typ entity.Type) {
	VersionConflictsTotal.WithLabelValues(typ.String()).Inc()
}

// Middleware считает запросы по operationId, а не по пути, чтобы id записей не попадали в метки.
func Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		op := "unknown"
		if o := ctx.Operation(); o != nil {
			op = o.OperationID
		}
		RequestsTotal.WithLabelValues(op, ctx.Method(), strconv.Itoa(ctx.Status())).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
