package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/usecase"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/pipeline/process"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/templates"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/vector/tfidf"
)

type Options struct {
	Logger *slog.Logger
	// ConnectQueue dials NATS. RequireQueue turns a failed dial into a startup
	// error; otherwise async rebuilds report a temporary failure.
	ConnectQueue bool
	RequireQueue bool
	// FailFastQueue disables background reconnects on the initial dial.
	FailFastQueue bool
	// WatchIndexes enables the fsnotify index warmer (see App.RunWarmer).
	WatchIndexes  bool
	IndexObserver tfidf.LoadObserver
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store     *localfs.Store
	Cache     *tfidf.Cache
	Queue     *nats.Queue
	Documents ports.DocumentService
	Rebuilder *usecase.RebuildIndexUseCase
	Chat      *usecase.ChatUseCase

	warmer  *tfidf.Warmer
	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	executor := resilience.NewExecutor(resilience.OutboundConfig(cfg.RetryMaxAttempts, cfg.BreakerEnabled, logger))

	marketing, err := app.marketingProvider(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	store, err := localfs.New(cfg.StorageRoot, localfs.Options{
		LegacyRoots: cfg.LegacyRoots,
		Marketing:   marketing,
		Logger:      logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init document store: %w", err)
	}
	app.Store = store
	app.Documents = store

	runner := process.NewRunner(process.Config{
		Interpreter: cfg.PipelineInterpreter,
		Script:      cfg.PipelineScript,
		WorkDir:     cfg.PipelineWorkDir,
		Timeout:     cfg.PipelineTimeout,
		Logger:      logger,
	})
	if !runner.PipelineAvailable() {
		logger.Warn("pipeline_unavailable", "script", runner.Script())
	}

	var queue ports.RebuildQueue
	if opts.ConnectQueue {
		retryConnect := !opts.FailFastQueue
		q, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			RetryOnFailedConnect: &retryConnect,
			ResilienceExecutor:   executor,
			Logger:               logger,
		})
		switch {
		case err == nil:
			app.Queue = q
			queue = q
			app.closers = append(app.closers, q.Close)
		case opts.RequireQueue:
			app.Close()
			return nil, fmt.Errorf("init rebuild queue: %w", err)
		default:
			logger.Warn("rebuild_queue_unavailable", "url", cfg.NATSURL, "error", err)
		}
	}

	app.Rebuilder = usecase.NewRebuildIndexUseCase(store, runner, runner, store, queue, cfg.RebuildCooldown, nil)

	tpl, err := templates.LoadFile(cfg.ChatTemplatesFile, usecase.DefaultChatTemplates())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load chat templates: %w", err)
	}

	var responder ports.ChatResponder
	if cfg.ChatResponderURL != "" {
		responder = ollama.NewResponder(ollama.NewWithOptions(cfg.ChatResponderURL, cfg.ChatResponderModel, ollama.Options{
			Timeout:            cfg.ChatResponderTTL,
			ResilienceExecutor: executor,
		}))
	}

	app.Cache = tfidf.NewCache(opts.IndexObserver)
	locator := localfs.NewIndexLocator(store.BasePath(), cfg.GlobalIndexPath, marketing)
	app.Chat = usecase.NewChatUseCase(locator, app.Cache, tpl, responder, cfg.ChatDefaultLocale, logger)

	if opts.WatchIndexes && cfg.IndexWatchEnabled {
		warmer, err := tfidf.NewWarmer(app.Cache, globalArtifactDirs(cfg.GlobalIndexPath), []string{store.BasePath()}, logger)
		if err != nil {
			logger.Warn("index_warmer_disabled", "error", err)
		} else {
			app.warmer = warmer
			app.closers = append(app.closers, func() { _ = warmer.Close() })
		}
	}

	return app, nil
}

// globalArtifactDirs returns the directory holding the global artifact, or
// nothing when no global index is configured.
func globalArtifactDirs(globalIndexPath string) []string {
	if strings.TrimSpace(globalIndexPath) == "" {
		return nil
	}
	return []string{filepath.Dir(globalIndexPath)}
}

func (a *App) marketingProvider(ctx context.Context, cfg config.Config) (ports.MarketingDomainProvider, error) {
	if cfg.PostgresDSN == "" {
		return localfs.StaticMarketingDomains(cfg.MarketingDomains), nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { closeDB(db) })

	repo := postgres.NewMarketingDomainRepository(db, cfg.MarketingDomainsCacheTTL)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

// RunWarmer blocks watching index artifacts until ctx is done. It returns
// immediately when watching is disabled.
func (a *App) RunWarmer(ctx context.Context) error {
	if a.warmer == nil {
		return nil
	}
	if err := a.warmer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}
