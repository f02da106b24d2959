package httpadapter

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

type documentsFake struct {
	docs      []domain.Document
	stored    domain.UploadedFile
	body      string
	storeErr  error
	listErr   error
	deleteErr error
	openErr   error
	deleted   []string
	domains   []string
}

func (f *documentsFake) ListDocuments(_ context.Context, domainName string) ([]domain.Document, error) {
	f.domains = append(f.domains, domainName)
	return f.docs, f.listErr
}

func (f *documentsFake) StoreDocument(_ context.Context, domainName string, file domain.UploadedFile) (*domain.Document, error) {
	f.domains = append(f.domains, domainName)
	f.stored = file
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if file.Err != nil {
		return nil, domain.ErrUploadFailed
	}
	raw, err := io.ReadAll(file.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(raw)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:         "ab12cd34",
		Name:       file.Filename,
		Filename:   "ab12cd34-" + file.Filename,
		MimeType:   "text/markdown",
		Size:       int64(len(raw)),
		UploadedAt: now,
		UpdatedAt:  now,
	}, nil
}

func (f *documentsFake) DeleteDocument(_ context.Context, domainName, id string) error {
	f.domains = append(f.domains, domainName)
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *documentsFake) OpenDocument(_ context.Context, _ string, id string) (*domain.Document, io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	doc := &domain.Document{ID: id, Name: "guide.md", MimeType: "text/markdown", Size: int64(len(f.body))}
	return doc, io.NopCloser(strings.NewReader(f.body)), nil
}

type rebuilderFake struct {
	result *domain.RebuildRequestResult
	err    error
	async  bool
	domain string
}

func (f *rebuilderFake) Rebuild(context.Context, string) (*domain.RebuildResult, error) {
	return nil, nil
}

func (f *rebuilderFake) RequestRebuild(_ context.Context, domainName string, async bool) (*domain.RebuildRequestResult, error) {
	f.async = async
	f.domain = domainName
	return f.result, f.err
}

type chatFake struct {
	resp     *domain.ChatResponse
	err      error
	question string
	locale   string
	domain   string
}

func (f *chatFake) Answer(_ context.Context, question, locale, domainName string) (*domain.ChatResponse, error) {
	f.question = question
	f.locale = locale
	f.domain = domainName
	return f.resp, f.err
}

func newTestHandler(cfg config.Config, docs *documentsFake, rebuilder *rebuilderFake, chat *chatFake) http.Handler {
	if docs == nil {
		docs = &documentsFake{}
	}
	if rebuilder == nil {
		rebuilder = &rebuilderFake{}
	}
	if chat == nil {
		chat = &chatFake{}
	}
	return NewRouter(cfg, docs, rebuilder, chat).Handler()
}
