package ports

import (
	"context"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

// DocumentStore owns the per-domain files, metadata and index artifact paths.
type DocumentStore interface {
	DocumentService
	NormaliseDomain(ctx context.Context, domainName string) (string, error)
	UploadsDir(ctx context.Context, domainName string) (string, error)
	IndexPath(ctx context.Context, domainName string) (string, error)
	CorpusPath(ctx context.Context, domainName string) (string, error)
	DomainDirectory(ctx context.Context, domainName string) (string, error)
	DocumentFiles(ctx context.Context, domainName string) ([]string, error)
	RemoveIndex(ctx context.Context, domainName string) error
}

// SemanticIndex is a loaded, immutable search index.
type SemanticIndex interface {
	Search(query string, topK int, minScore float64) []domain.SearchResult
}

// IndexLoader resolves an artifact path to a loaded index.
type IndexLoader interface {
	Open(path string) (SemanticIndex, error)
}

// IndexLocator resolves which index artifacts may serve a domain.
type IndexLocator interface {
	DomainIndexPaths(ctx context.Context, domainName string) ([]string, error)
	GlobalIndexPath() string
}

// ProcessRunner runs an external program to completion.
type ProcessRunner interface {
	Run(ctx context.Context, args []string) (domain.ProcessResult, error)
}

// PipelineLocator finds the external index pipeline entry point.
type PipelineLocator interface {
	PipelineAvailable() bool
}

// RebuildLock records when a domain index rebuild was last requested.
type RebuildLock interface {
	LastRebuild(ctx context.Context, domainName string) (time.Time, bool, error)
	MarkRebuild(ctx context.Context, domainName string, at time.Time) error
}

// Clock abstracts wall time for cooldown checks.
type Clock interface {
	Now() time.Time
}
