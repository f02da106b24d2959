package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

const (
	DefaultRebuildCooldown = 300 * time.Second
	clearedIndexMessage    = "No documents available, cleared domain index."
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type RebuildIndexUseCase struct {
	store    ports.DocumentStore
	runner   ports.ProcessRunner
	pipeline ports.PipelineLocator
	lock     ports.RebuildLock
	queue    ports.RebuildQueue
	cooldown time.Duration
	clock    ports.Clock
}

func NewRebuildIndexUseCase(
	store ports.DocumentStore,
	runner ports.ProcessRunner,
	pipeline ports.PipelineLocator,
	lock ports.RebuildLock,
	queue ports.RebuildQueue,
	cooldown time.Duration,
	clock ports.Clock,
) *RebuildIndexUseCase {
	if cooldown < 0 {
		cooldown = DefaultRebuildCooldown
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &RebuildIndexUseCase{
		store:    store,
		runner:   runner,
		pipeline: pipeline,
		lock:     lock,
		queue:    queue,
		cooldown: cooldown,
		clock:    clock,
	}
}

// Rebuild runs the external pipeline over the domain's documents and blocks
// until it exits. A domain without documents has its index removed instead.
// A failed run returns the captured output together with a
// *domain.PipelineFailure.
func (uc *RebuildIndexUseCase) Rebuild(ctx context.Context, domainName string) (*domain.RebuildResult, error) {
	slug, err := uc.store.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}

	cleared, err := uc.clearIfEmpty(ctx, slug)
	if err != nil || cleared != nil {
		return cleared, err
	}

	args, err := uc.pipelineArgs(ctx, slug)
	if err != nil {
		return nil, err
	}

	out, err := uc.runner.Run(ctx, args)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "run index pipeline", err)
	}
	result := &domain.RebuildResult{
		Success: out.Success,
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
		Cleared: false,
	}
	if !out.Success {
		return result, &domain.PipelineFailure{Stdout: out.Stdout, Stderr: out.Stderr}
	}
	return result, nil
}

// RequestRebuild rebuilds synchronously, or, when async is set, enqueues the
// rebuild subject to a per-domain cooldown.
func (uc *RebuildIndexUseCase) RequestRebuild(ctx context.Context, domainName string, async bool) (*domain.RebuildRequestResult, error) {
	slug, err := uc.store.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}

	if !async {
		result, err := uc.Rebuild(ctx, slug)
		if result == nil {
			return nil, err
		}
		return &domain.RebuildRequestResult{
			Domain:  slug,
			Status:  domain.RebuildCompleted,
			Success: result.Success,
			Result:  result,
		}, err
	}

	now := uc.clock.Now()

	if uc.lock != nil && uc.cooldown > 0 {
		last, ok, err := uc.lock.LastRebuild(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("read rebuild lock: %w", err)
		}
		if ok {
			if elapsed := now.Sub(last); elapsed < uc.cooldown {
				return &domain.RebuildRequestResult{
					Domain:     slug,
					Status:     domain.RebuildThrottled,
					Success:    false,
					RetryAfter: uc.cooldown - elapsed,
				}, nil
			}
		}
	}

	cleared, err := uc.clearIfEmpty(ctx, slug)
	if err != nil {
		return nil, err
	}
	if cleared != nil {
		if err := uc.markRebuild(ctx, slug, now); err != nil {
			return nil, err
		}
		return &domain.RebuildRequestResult{
			Domain:  slug,
			Status:  domain.RebuildCleared,
			Success: true,
			Result:  cleared,
		}, nil
	}

	if uc.pipeline != nil && !uc.pipeline.PipelineAvailable() {
		return nil, domain.ErrMissingPipeline
	}
	if uc.queue == nil {
		return nil, fmt.Errorf("rebuild queue is not configured: %w", domain.ErrTemporary)
	}
	if err := uc.markRebuild(ctx, slug, now); err != nil {
		return nil, err
	}
	if err := uc.queue.PublishRebuildRequested(ctx, slug); err != nil {
		return nil, fmt.Errorf("publish rebuild request: %w", err)
	}
	return &domain.RebuildRequestResult{
		Domain:  slug,
		Status:  domain.RebuildQueued,
		Success: true,
	}, nil
}

func (uc *RebuildIndexUseCase) clearIfEmpty(ctx context.Context, slug string) (*domain.RebuildResult, error) {
	files, err := uc.store.DocumentFiles(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("list document files: %w", err)
	}
	if len(files) > 0 {
		return nil, nil
	}
	if err := uc.store.RemoveIndex(ctx, slug); err != nil {
		return nil, fmt.Errorf("remove index: %w", err)
	}
	return &domain.RebuildResult{
		Success: true,
		Stdout:  clearedIndexMessage,
		Stderr:  "",
		Cleared: true,
	}, nil
}

func (uc *RebuildIndexUseCase) pipelineArgs(ctx context.Context, slug string) ([]string, error) {
	if uc.pipeline != nil && !uc.pipeline.PipelineAvailable() {
		return nil, domain.ErrMissingPipeline
	}
	uploadsDir, err := uc.store.UploadsDir(ctx, slug)
	if err != nil {
		return nil, err
	}
	corpusPath, err := uc.store.CorpusPath(ctx, slug)
	if err != nil {
		return nil, err
	}
	indexPath, err := uc.store.IndexPath(ctx, slug)
	if err != nil {
		return nil, err
	}
	return []string{uploadsDir, "--corpus", corpusPath, "--index", indexPath, "--force"}, nil
}

func (uc *RebuildIndexUseCase) markRebuild(ctx context.Context, slug string, at time.Time) error {
	if uc.lock == nil {
		return nil
	}
	if err := uc.lock.MarkRebuild(ctx, slug, at); err != nil {
		return fmt.Errorf("mark rebuild: %w", err)
	}
	return nil
}
