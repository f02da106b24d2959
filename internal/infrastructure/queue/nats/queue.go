package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/domain-knowledge-rag/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "kb.index.rebuild"
	workerGroup    = "index-workers"
	headerDomain   = "Kb-Domain"

	publishOperation = "rebuild_request.publish"
)

// Queue carries rebuild requests for canonical domain slugs from the API to
// the worker.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("domain-knowledge-rag"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishRebuildRequested(ctx context.Context, domainName string) error {
	msg := newRebuildMessage(q.subject, domainName)
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish rebuild request for %s: %w", domainName, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, publishOperation, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return resilience.MarkTemporary("publish rebuild request", err, classifyPublishError)
}

// classifyPublishError retries while the client is between servers; the
// reconnect loop usually restores the connection within one backoff window.
var classifyPublishError = resilience.RetryOn(func(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected)
})

// SubscribeRebuildRequested blocks until ctx is done, handing every request to
// handler. Workers share one queue group so each request is rebuilt once.
func (q *Queue) SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		domainName := rebuildDomain(msg)
		if domainName == "" {
			q.logger.Warn("rebuild_request_dropped", "reason", "empty domain")
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, domainName); err != nil {
			q.logger.Error("rebuild_handler_failed", "domain", domainName, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func newRebuildMessage(subject, domainName string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(headerDomain, domainName)
	msg.Data = []byte(domainName)
	return msg
}

// rebuildDomain prefers the header and falls back to the body for publishers
// that send bare payloads.
func rebuildDomain(msg *nats.Msg) string {
	if msg == nil {
		return ""
	}
	if msg.Header != nil {
		if v := strings.TrimSpace(msg.Header.Get(headerDomain)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(string(msg.Data))
}
