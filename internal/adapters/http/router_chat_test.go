package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/metrics"
)

func postChat(handler http.Handler, payload any, header map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestChatReturnsAnswer(t *testing.T) {
	chat := &chatFake{resp: &domain.ChatResponse{
		Question: "How?",
		Answer:   "1. Guide: text",
		Context:  []domain.ContextItem{{Label: "Guide", Snippet: "text", Score: 0.5, Metadata: map[string]any{}}},
	}}
	handler := newTestHandler(config.Config{}, nil, nil, chat)

	res := postChat(handler, map[string]string{"question": "How?", "locale": "en", "domain": "calserver"}, nil)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload domain.ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Answer != "1. Guide: text" || len(payload.Context) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if chat.locale != "en" || chat.domain != "calserver" {
		t.Fatalf("unexpected arguments locale=%q domain=%q", chat.locale, chat.domain)
	}
}

func TestChatFallsBackToAcceptLanguage(t *testing.T) {
	chat := &chatFake{resp: &domain.ChatResponse{Context: []domain.ContextItem{}}}
	handler := newTestHandler(config.Config{}, nil, nil, chat)

	res := postChat(handler, map[string]string{"question": "Wie?"}, map[string]string{"Accept-Language": "en-GB;q=0.9, de;q=0.8"})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if chat.locale != "en-GB" {
		t.Fatalf("expected locale from Accept-Language, got %q", chat.locale)
	}
}

func TestChatMapsEmptyQuestionTo400(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, &chatFake{err: domain.ErrEmptyQuestion})

	res := postChat(handler, map[string]string{"question": " "}, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, &chatFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatMapsMalformedIndexTo422(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, &chatFake{err: domain.ErrInvalidPayload})

	res := postChat(handler, map[string]string{"question": "q"}, nil)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestMetricsEndpointExposesChatObservations(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	chat := &chatFake{resp: &domain.ChatResponse{Context: []domain.ContextItem{}}}
	handler := NewRouter(config.Config{}, &documentsFake{}, &rebuilderFake{}, chat).WithMetrics(m).Handler()

	if res := postChat(handler, map[string]string{"question": "q"}, nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if !strings.Contains(res.Body.String(), `kb_chat_no_context_total{endpoint="chat",service="api"} 1`) {
		t.Fatalf("expected chat metrics in scrape output:\n%s", res.Body.String())
	}
}
