package quiz

import (
	"errors"

	"github.com/pavelanni/ytlearner/internal/content"
	"github.com/pavelanni/ytlearner/internal/store"
)

var (
	// ErrInvalidParameter reports out-of-range question counts or a malformed source ref.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrGenerationUnavailable means neither the model nor the fallback could build the quiz.
	ErrGenerationUnavailable = errors.New("question generation unavailable")
	// ErrReportMalformed means a drafted report failed validation.
	ErrReportMalformed = errors.New("report draft malformed")
	// ErrEmbeddingUnavailable means the embedding provider failed. Retryable.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrUnknownQuestion means a submission referenced a question id not in the quiz.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrInvalidSubmission means a submission is structurally invalid.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrNotFound is returned for missing quizzes, attempts and source material.
	ErrNotFound = store.ErrNotFound
)

// IsNotFound reports whether err is a missing-record error from any layer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, content.ErrNotFound)
}

// IsCallerError reports whether err was caused by the request itself.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrInvalidSubmission) ||
		errors.Is(err, ErrUnknownQuestion)
}

// IsRetryable reports whether the same request may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}
