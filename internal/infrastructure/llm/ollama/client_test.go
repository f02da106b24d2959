package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/resilience"
)

func TestResponderSendsChatMessages(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  Use the upload form. "},"done":true}`))
	}))
	defer server.Close()

	responder := NewResponder(New(server.URL+"/", "llama3"))
	answer, err := responder.Respond(context.Background(), []domain.ChatMessage{
		{Role: "system", Content: "Answer from context."},
		{Role: "user", Content: "How do I upload?"},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if answer != "Use the upload form." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if captured.Model != "llama3" || captured.Stream || len(captured.Messages) != 2 || captured.Messages[1].Content != "How do I upload?" {
		t.Fatalf("unexpected request: %+v", captured)
	}
}

func TestResponderIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	responder := NewResponder(New(server.URL, "missing"))
	_, err := responder.Respond(context.Background(), []domain.ChatMessage{{Role: "user", Content: "q"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be reported as temporary")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
}

func TestResponderRetriesUnavailableUpstream(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ready"}}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	responder := NewResponder(NewWithOptions(server.URL, "llama3", Options{ResilienceExecutor: executor}))

	answer, err := responder.Respond(context.Background(), []domain.ChatMessage{{Role: "user", Content: "q"}})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if answer != "ready" || calls.Load() != 2 {
		t.Fatalf("expected retry then success, got %q after %d calls", answer, calls.Load())
	}
}

func TestResponderRejectsEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"   "}}`))
	}))
	defer server.Close()

	_, err := NewResponder(New(server.URL, "llama3")).Respond(context.Background(), []domain.ChatMessage{{Role: "user", Content: "q"}})
	if err == nil {
		t.Fatalf("expected empty answer error")
	}
}

func TestClassifyChatError(t *testing.T) {
	loading := &HTTPStatusError{Operation: "chat", StatusCode: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
	if class := classifyChatError(loading); !class.Retryable || !class.RecordFailure {
		t.Fatalf("503 must be retried and recorded: %+v", class)
	}

	missingModel := &HTTPStatusError{Operation: "chat", StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	if class := classifyChatError(missingModel); class.Retryable || class.RecordFailure {
		t.Fatalf("404 must neither retry nor trip the breaker: %+v", class)
	}

	var dialErr net.Error = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if class := classifyChatError(dialErr); !class.Retryable {
		t.Fatalf("network errors must be retried: %+v", class)
	}

	if class := classifyChatError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded: %+v", class)
	}
}
