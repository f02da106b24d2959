package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal     *prometheus.CounterVec
	chatRetrievalHitTotal *prometheus.CounterVec
	chatNoContextTotal    *prometheus.CounterVec
	chatContextItems      *prometheus.HistogramVec
	chatDuration          *prometheus.HistogramVec
	indexLoadsTotal       *prometheus.CounterVec
	documentOpsTotal      *prometheus.CounterVec
	rebuildRequestsTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total answered chat requests.",
		},
		[]string{"service", "endpoint"},
	)
	chatRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "chat",
			Name:      "retrieval_hit_total",
			Help:      "Total chat requests with at least one context item.",
		},
		[]string{"service", "endpoint"},
	)
	chatNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "chat",
			Name:      "no_context_total",
			Help:      "Total chat requests answered with the no-results template.",
		},
		[]string{"service", "endpoint"},
	)
	chatContextItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "chat",
			Name:      "context_items",
			Help:      "Distribution of context items per chat answer.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		},
		[]string{"service", "endpoint"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Chat answer duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	indexLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "index",
			Name:      "loads_total",
			Help:      "Semantic index cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	documentOpsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "documents",
			Name:      "operations_total",
			Help:      "Document store operations by kind and status.",
		},
		[]string{"service", "operation", "status"},
	)
	rebuildRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "index",
			Name:      "rebuild_requests_total",
			Help:      "Index rebuild requests by resulting status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		chatRetrievalHitTotal,
		chatNoContextTotal,
		chatContextItems,
		chatDuration,
		indexLoadsTotal,
		documentOpsTotal,
		rebuildRequestsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		service:               service,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		chatRequestsTotal:     chatRequestsTotal,
		chatRetrievalHitTotal: chatRetrievalHitTotal,
		chatNoContextTotal:    chatNoContextTotal,
		chatContextItems:      chatContextItems,
		chatDuration:          chatDuration,
		indexLoadsTotal:       indexLoadsTotal,
		documentOpsTotal:      documentOpsTotal,
		rebuildRequestsTotal:  rebuildRequestsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := routeLabel(r)
		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps label cardinality bounded: the matched mux pattern when the
// router set one, otherwise the path with domain and document ids collapsed.
func routeLabel(r *http.Request) string {
	if pattern := strings.TrimSpace(r.Pattern); pattern != "" {
		if _, path, ok := strings.Cut(pattern, " "); ok {
			return path
		}
		return pattern
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "v1" || segments[1] != "domains" {
		return path
	}
	segments[2] = "{domain}"
	if len(segments) == 5 && segments[3] == "documents" {
		segments[4] = "{id}"
	}
	return "/" + strings.Join(segments, "/")
}

func (m *HTTPServerMetrics) RecordChatObservation(service, endpoint string, contextItems int, duration time.Duration) {
	m.chatRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.chatContextItems.WithLabelValues(service, endpoint).Observe(float64(contextItems))
	m.chatDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if contextItems > 0 {
		m.chatRetrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.chatNoContextTotal.WithLabelValues(service, endpoint).Inc()
}

// ObserveIndexLoad counts semantic index cache outcomes (hit, miss, reload,
// error).
func (m *HTTPServerMetrics) ObserveIndexLoad(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.indexLoadsTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordDocumentOperation(service, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.documentOpsTotal.WithLabelValues(service, operation, status).Inc()
}

func (m *HTTPServerMetrics) RecordRebuildRequest(service, status string) {
	if status == "" {
		status = "error"
	}
	m.rebuildRequestsTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
