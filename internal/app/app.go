package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"postpilot/apps/backend/features/billing"
	"postpilot/apps/backend/features/content"
	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/features/stats"
	"postpilot/apps/backend/internal/clock"
	"postpilot/apps/backend/internal/config"
	"postpilot/apps/backend/internal/middleware"
	"postpilot/apps/backend/internal/notify"
	"postpilot/apps/backend/internal/worker"
)

type App struct {
	Handler    http.Handler
	JobService *job.Service
	Poller     *worker.Poller

	cfg *config.Config
}

func New(
	cfg *config.Config,
	db *sql.DB,
	pub worker.Publisher,
	sender notify.Sender,
	gen worker.Generator,
	embedder worker.Embedder,
	vectors worker.VectorStore,
	billingGW worker.BillingGateway,
	logger *slog.Logger,
) (*App, error) {
	clk := clock.System()

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, clk, cfg.DefaultMaxAttempts, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Content
	contentRepo := content.NewPostgresRepo(db)

	// Feature: Billing webhook
	billingHandler := billing.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(jobService)

	// Worker
	handlers := worker.NewHandlers(contentRepo, pub, sender, gen, embedder, vectors, billingGW, jobService, clk)
	dispatcher := worker.NewDispatcher(handlers)
	poller := worker.NewPoller(jobRepo, dispatcher, clk, worker.PollerConfig{
		BatchSize:         cfg.PollBatchSize,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		JobTimeout:        cfg.JobTimeout,
		StaleRunningAfter: cfg.StaleRunningAfter,
	})

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /jobs", middleware.CorrelationID(enableCORS(jobHandler.Create)))
	mux.Handle("GET /jobs", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("POST /webhooks/billing", middleware.CorrelationID(http.HandlerFunc(billingHandler.Receive)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	// Manual cycle trigger, for ops and local debugging.
	mux.Handle("POST /poller/run", middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := poller.RunCycle(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "manual poll cycle failed", "error", err)
			http.Error(w, "cycle failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			slog.ErrorContext(r.Context(), "failed to encode summary", "error", err)
		}
	})))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:    mux,
		JobService: jobService,
		Poller:     poller,
		cfg:        cfg,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
