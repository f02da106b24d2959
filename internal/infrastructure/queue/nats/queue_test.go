package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/resilience"
)

func TestRebuildMessageCarriesDomain(t *testing.T) {
	msg := newRebuildMessage("kb.index.rebuild", "calserver")

	if msg.Subject != "kb.index.rebuild" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if got := rebuildDomain(msg); got != "calserver" {
		t.Fatalf("expected calserver, got %q", got)
	}
}

func TestRebuildDomainFallsBackToBody(t *testing.T) {
	msg := &nats.Msg{Data: []byte(" example.com \n")}
	if got := rebuildDomain(msg); got != "example.com" {
		t.Fatalf("expected body domain, got %q", got)
	}
	if got := rebuildDomain(nil); got != "" {
		t.Fatalf("expected empty domain for nil message, got %q", got)
	}
}

func TestClassifyPublishError(t *testing.T) {
	if class := classifyPublishError(fmt.Errorf("publish rebuild request: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("closed connection must be retryable")
	}
	if class := classifyPublishError(nats.ErrTimeout); !class.Retryable {
		t.Fatalf("timeout must be retryable")
	}
	if class := classifyPublishError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded: %+v", class)
	}
	if class := classifyPublishError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("bad subject must not be retried")
	}
}

func TestPublishErrorsMarkedTemporary(t *testing.T) {
	err := resilience.MarkTemporary("publish rebuild request", fmt.Errorf("publish: %w", nats.ErrNoServers), classifyPublishError)
	if !errors.Is(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrNoServers) {
		t.Fatalf("expected temporary wrap preserving cause, got %v", err)
	}
	if err := resilience.MarkTemporary("publish rebuild request", nats.ErrBadSubject, classifyPublishError); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("permanent errors must not be marked temporary")
	}
}
