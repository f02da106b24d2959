package ports

import (
	"context"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

// RebuildQueue publishes/consumes asynchronous index rebuild requests.
type RebuildQueue interface {
	PublishRebuildRequested(ctx context.Context, domainName string) error
	SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ChatResponder turns retrieved context into a generated answer.
type ChatResponder interface {
	Respond(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// MarketingDomainProvider lists the hosts that collapse to a short slug.
type MarketingDomainProvider interface {
	MarketingDomains(ctx context.Context) ([]string, error)
}

// TemplateSource provides localized chat templates keyed by locale.
type TemplateSource interface {
	Templates() map[string]domain.ChatTemplate
}
