package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/domain-knowledge-rag/internal/adapters/mcp"
	"github.com/kirillkom/domain-knowledge-rag/internal/bootstrap"
	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:       logger,
		WatchIndexes: true,
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

	tools := mcpadapter.NewTools(app.Chat, app.Documents, logger)
	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
