package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/bootstrap"
	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/logging"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/metrics"
)

const rebuildTimeout = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:       logger,
		ConnectQueue: true,
		RequireQueue: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeRebuildRequested(ctx, func(handlerCtx context.Context, domainName string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, rebuildTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartRebuild()
		result, err := app.Rebuilder.Rebuild(rebuildCtx, domainName)
		status := rebuildStatus(result, err)
		workerMetrics.FinishRebuild("worker", status, time.Since(start))

		logger.Info("rebuild_finished",
			"domain", domainName,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func rebuildStatus(result *domain.RebuildResult, err error) string {
	switch {
	case result != nil && result.Cleared:
		return metrics.RebuildCleared
	case domain.IsKind(err, domain.ErrPipeline):
		return metrics.RebuildFailed
	case err != nil:
		return metrics.RebuildError
	default:
		return metrics.RebuildSuccess
	}
}
