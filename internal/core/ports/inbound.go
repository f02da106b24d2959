package ports

import (
	"context"
	"io"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

// DocumentService is the inbound contract for per-domain document management.
type DocumentService interface {
	ListDocuments(ctx context.Context, domainName string) ([]domain.Document, error)
	StoreDocument(ctx context.Context, domainName string, file domain.UploadedFile) (*domain.Document, error)
	DeleteDocument(ctx context.Context, domainName, id string) error
	OpenDocument(ctx context.Context, domainName, id string) (*domain.Document, io.ReadCloser, error)
}

// IndexRebuilder is the inbound contract for rebuilding a domain index.
type IndexRebuilder interface {
	Rebuild(ctx context.Context, domainName string) (*domain.RebuildResult, error)
	RequestRebuild(ctx context.Context, domainName string, async bool) (*domain.RebuildRequestResult, error)
}

// ChatService answers questions from the knowledge base.
type ChatService interface {
	Answer(ctx context.Context, question, locale, domainName string) (*domain.ChatResponse, error)
}
