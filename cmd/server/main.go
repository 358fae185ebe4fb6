package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vetsync/internal/app/server"
	"vetsync/internal/app/server/config"
	"vetsync/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.NewWithLevel(cfg.Env, cfg.Logger.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
