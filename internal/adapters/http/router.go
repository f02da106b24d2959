package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/config"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
	"github.com/kirillkom/domain-knowledge-rag/internal/observability/metrics"
)

const (
	serviceName = "api"
	// multipartOverhead leaves room for boundaries and headers around a
	// maximum-size document.
	multipartOverhead = 64 << 10
	maxChatBodyBytes  = 64 << 10
)

type Router struct {
	cfg       config.Config
	documents ports.DocumentService
	rebuilder ports.IndexRebuilder
	chat      ports.ChatService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	documents ports.DocumentService,
	rebuilder ports.IndexRebuilder,
	chat ports.ChatService,
) *Router {
	return &Router{
		cfg:       cfg,
		documents: documents,
		rebuilder: rebuilder,
		chat:      chat,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/domains/{domain}/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/domains/{domain}/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/domains/{domain}/documents/{id}", rt.downloadDocument)
	mux.HandleFunc("DELETE /v1/domains/{domain}/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/domains/{domain}/index/rebuild", rt.rebuildIndex)
	mux.HandleFunc("POST /v1/chat", rt.answerChat)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueTimeout)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.documents.ListDocuments(r.Context(), r.PathValue("domain"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxDocumentSize+multipartOverhead)

	upload := domain.UploadedFile{Size: -1}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload.Filename = header.Filename
		upload.MediaType = header.Header.Get("Content-Type")
		upload.Size = header.Size
		upload.Body = file
	case isBodyTooLarge(err):
		err = fmt.Errorf("%w: request body too large", domain.ErrSizeExceeded)
		rt.recordDocumentOperation("store", err)
		rt.writeError(w, r, err)
		return
	default:
		upload.Err = err
	}

	doc, err := rt.documents.StoreDocument(r.Context(), r.PathValue("domain"), upload)
	rt.recordDocumentOperation("store", err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.documents.OpenDocument(r.Context(), r.PathValue("domain"), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document_download_interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := rt.documents.DeleteDocument(r.Context(), r.PathValue("domain"), r.PathValue("id"))
	rt.recordDocumentOperation("delete", err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	async := parseBoolParam(r.URL.Query().Get("async"))

	result, err := rt.rebuilder.RequestRebuild(r.Context(), r.PathValue("domain"), async)
	if err != nil {
		rt.recordRebuildRequest("error")
		rt.writeError(w, r, err)
		return
	}
	rt.recordRebuildRequest(string(result.Status))

	switch result.Status {
	case domain.RebuildQueued:
		writeJSON(w, http.StatusAccepted, result)
	case domain.RebuildThrottled:
		w.Header().Set("Retry-After", retryAfterSeconds(result.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

type chatRequest struct {
	Question string `json:"question"`
	Locale   string `json:"locale"`
	Domain   string `json:"domain"`
}

func (rt *Router) answerChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = primaryLanguage(r.Header.Get("Accept-Language"))
	}

	start := time.Now()
	resp, err := rt.chat.Answer(r.Context(), req.Question, locale, req.Domain)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChatObservation(serviceName, "chat", len(resp.Context), time.Since(start))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, newErrorResponse(err))
}

func (rt *Router) recordDocumentOperation(operation string, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordDocumentOperation(serviceName, operation, err)
	}
}

func (rt *Router) recordRebuildRequest(status string) {
	if rt.metrics != nil {
		rt.metrics.RecordRebuildRequest(serviceName, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	return strconv.FormatInt(max(seconds, 1), 10)
}

// primaryLanguage returns the first language tag of an Accept-Language header.
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(tag)
}
