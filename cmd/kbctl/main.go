package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/domain-knowledge-rag/internal/adapters/cli"
	"github.com/kirillkom/domain-knowledge-rag/internal/bootstrap"
	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:        logger,
		ConnectQueue:  cfg.NATSURL != "",
		FailFastQueue: true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	cli.SetServices(cli.Services{
		Documents: app.Documents,
		Rebuilder: app.Rebuilder,
		Chat:      app.Chat,
	})
	err = cli.Execute(ctx)
	app.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
