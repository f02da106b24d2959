package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// TemporaryClassifier retries errors of kind domain.ErrTemporary and never
// counts caller cancellation against the breaker.
func TemporaryClassifier(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// RetryOn extends TemporaryClassifier with adapter-specific transient faults.
// An open circuit counts as transient so callers surface it as ErrTemporary.
func RetryOn(transient func(error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		class := TemporaryClassifier(err)
		if err == nil || class.Retryable || !class.RecordFailure {
			return class
		}
		if IsCircuitOpen(err) || transient(err) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return class
	}
}

// MarkTemporary wraps err as domain.ErrTemporary when classifier would have
// retried it, so the HTTP layer answers 503 instead of 500.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = TemporaryClassifier
	}
	if classifier(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

// AsTemporary marks err as domain.ErrTemporary so adapters report it as
// retryable.
func AsTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
