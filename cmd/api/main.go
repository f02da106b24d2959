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

	httpadapter "github.com/kirillkom/domain-knowledge-rag/internal/adapters/http"
	"github.com/kirillkom/domain-knowledge-rag/internal/bootstrap"
	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/logging"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:        logger,
		ConnectQueue:  cfg.NATSURL != "",
		WatchIndexes:  true,
		IndexObserver: httpMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go func() {
		if err := app.RunWarmer(ctx); err != nil {
			logger.Warn("index_warmer_stopped", "error", err)
		}
	}()

	router := httpadapter.NewRouter(cfg, app.Documents, app.Rebuilder, app.Chat).
		WithMetrics(httpMetrics).
		Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
