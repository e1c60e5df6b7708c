package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"postpilot/apps/backend/internal/app"
	"postpilot/apps/backend/internal/config"
	"postpilot/apps/backend/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. External Dependencies
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()
	slog.Info("migrations applied, dependencies ready")

	// 3. Wire the Application
	a, err := app.New(
		cfg,
		deps.DB,
		deps.WordPress,
		deps.Sender,
		deps.Generator,
		deps.Embedder,
		deps.VectorStore,
		deps.Billing,
		log,
	)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	// 4. Poller
	go a.Poller.Run(ctx, cfg.PollInterval)
	slog.Info("poller started", "interval", cfg.PollInterval)

	// 5. HTTP Server
	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
