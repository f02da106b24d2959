package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/resilience"
)

const (
	defaultTimeout = 60 * time.Second
	chatOperation  = "responder.chat"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

// Responder turns the orchestrator's prompt messages into a generated answer
// via Ollama's chat endpoint.
type Responder struct {
	client *Client
}

func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (r *Responder) Respond(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("ollama chat: no messages")
	}
	request := chatRequest{
		Model:    r.client.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   false,
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	response, err := resilience.Call(ctx, r.client.executor, chatOperation, func(ctx context.Context) (chatResponse, error) {
		var out chatResponse
		err := r.client.postJSON(ctx, "/api/chat", request, &out, "chat")
		return out, err
	}, classifyChatError)
	if err != nil {
		return "", resilience.MarkTemporary("ollama chat", err, classifyChatError)
	}

	answer := strings.TrimSpace(response.Message.Content)
	if answer == "" {
		return "", fmt.Errorf("ollama chat: empty answer")
	}
	return answer, nil
}

var classifyTransportError = resilience.RetryOn(func(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
})

// classifyChatError retries /api/chat while the model is loading or the
// server is overloaded. Other statuses (404 for a model that was never
// pulled, 400 for a bad payload) come from a healthy server and stay out of
// the breaker.
func classifyChatError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return classifyTransportError(err)
	}
	switch statusErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{}
	}
}
