package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrFormat):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrPipeline):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// newErrorResponse exposes pipeline output verbatim so operators can see why a
// rebuild failed.
func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	var failure *domain.PipelineFailure
	if errors.As(err, &failure) {
		resp.Stdout = failure.Stdout
		resp.Stderr = failure.Stderr
	}
	return resp
}
