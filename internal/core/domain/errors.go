package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Adapters map these to transport status codes.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrPipeline     = errors.New("index pipeline failure")
	ErrFormat       = errors.New("malformed artifact")
	ErrTemporary    = errors.New("temporary failure")
)

// Specific failures. Each one wraps its kind so errors.Is matches both.
var (
	ErrInvalidDomain        = fmt.Errorf("invalid domain supplied: %w", ErrInvalidInput)
	ErrInvalidFilename      = fmt.Errorf("missing filename: %w", ErrInvalidInput)
	ErrUnsupportedExtension = fmt.Errorf("unsupported file type: %w", ErrInvalidInput)
	ErrSizeExceeded         = fmt.Errorf("file exceeds the allowed size: %w", ErrInvalidInput)
	ErrUploadFailed         = fmt.Errorf("upload failed: %w", ErrInvalidInput)
	ErrEmptyQuestion        = fmt.Errorf("question must not be empty: %w", ErrInvalidInput)

	ErrDocumentNotFound = fmt.Errorf("document not found: %w", ErrNotFound)
	ErrIndexNotFound    = fmt.Errorf("semantic index not found: %w", ErrNotFound)

	ErrMissingPipeline = fmt.Errorf("pipeline entry point is missing: %w", ErrPipeline)

	ErrInvalidPayload = fmt.Errorf("invalid semantic index payload: %w", ErrFormat)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PipelineFailure carries the verbatim output of a failed pipeline run.
type PipelineFailure struct {
	Stdout string
	Stderr string
}

func (e *PipelineFailure) Error() string {
	if e == nil {
		return ErrPipeline.Error()
	}
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(e.Stdout); msg != "" {
		return msg
	}
	return "domain index rebuild failed"
}

func (e *PipelineFailure) Unwrap() error { return ErrPipeline }
