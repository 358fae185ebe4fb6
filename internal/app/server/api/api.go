// Package api собирает HTTP API сервера записей клиник.
//
//POST   /api/v1/auth/register              # Регистрация сотрудника (публичный)
//POST   /api/v1/auth/login                 # Вход (публичный)
//POST   /api/v1/auth/logout                # Выход (auth)
//HEAD   /api/v1/health                     # Доступность
//GET    /api/v1/health                     # Состояние сервиса и БД
//GET    /api/v1/entities/{type}?since=     # Изменения после since (auth)
//POST   /api/v1/entities/{type}            # Создать запись (auth)
//GET    /api/v1/entities/{type}/{id}       # Получить запись (auth)
//PUT    /api/v1/entities/{type}/{id}       # Заменить данные (auth)
//DELETE /api/v1/entities/{type}/{id}       # Удалить запись (auth)
//GET    /metrics                           # Prometheus

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	accountAPI "vetsync/internal/app/server/api/http/account"
	healthAPI "vetsync/internal/app/server/api/http/health"
	"vetsync/internal/app/server/api/http/middleware"
	"vetsync/internal/app/server/api/http/middleware/auth"
	"vetsync/internal/app/server/api/http/middleware/logger"
	"vetsync/internal/app/server/api/http/middleware/metrics"
	practiceAPI "vetsync/internal/app/server/api/http/practice"
	"vetsync/internal/app/server/config"
	"vetsync/internal/domain/practice"
	"vetsync/internal/domain/session"
	"vetsync/internal/domain/staff"
	"vetsync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health   *healthAPI.Handler
	Account  *accountAPI.Handler
	Practice *practiceAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	hcfg := huma.DefaultConfig("VetSync API", "1.0.0")
	hcfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, hcfg)

	h := handlers(API, storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.Account.SetupRoutes(API)
	h.Practice.SetupRoutes(API)

	if cfg.Server.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}

func handlers(API huma.API, storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Handlers {
	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, cfg.Session.TTL, log)
	authMW := auth.New(API, sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(metrics.Middleware(), loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(storage, log, middlewares.GetAllAndClear())

	staffRepo := postgres.NewStaffRepository(storage, log)
	staffService := staff.NewService(staffRepo, staff.NewPasswordValidator(), log)
	middlewares.Add(metrics.Middleware(), loggerMW.Middleware())
	accountHandler := accountAPI.NewHandler(staffService, sessionService, log, middlewares.GetAllAndClear())

	practiceRepo := postgres.NewPracticeRepository(storage, log)
	practiceService := practice.NewService(practiceRepo, log, metrics.RecordConflict)
	middlewares.Add(metrics.Middleware(), loggerMW.Middleware(), authMW.Middleware())
	practiceHandler := practiceAPI.NewHandler(practiceService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Account:  accountHandler,
		Practice: practiceHandler,
	}
}
