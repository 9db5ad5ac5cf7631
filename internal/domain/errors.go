package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving a use case matches at most one of them via errors.Is.
var (
	// ErrInvalidConfiguration signals a caller or server configuration error. Not retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate resource.
	ErrConflict = errors.New("conflict")
	// ErrUpstreamUnavailable signals a failing or timed-out collaborator. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	// ErrVectorDimMismatch signals an embedding whose dimension differs from the store's.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrInvalidConfiguration)
	// ErrEmptyDocument signals an upload that produced no chunks.
	ErrEmptyDocument = fmt.Errorf("document has no extractable text: %w", ErrInvalidConfiguration)
	// ErrUnsupportedFormat signals a file type without an extractor.
	ErrUnsupportedFormat = fmt.Errorf("unsupported document format: %w", ErrInvalidConfiguration)
	// ErrInvalidTopK signals a result count outside 1..max.
	ErrInvalidTopK = fmt.Errorf("top_k out of range: %w", ErrInvalidConfiguration)
	// ErrInvalidDocument signals a document or chunk that fails validation.
	ErrInvalidDocument = fmt.Errorf("invalid document: %w", ErrInvalidConfiguration)

	// ErrDocumentNotFound signals a missing document or a document without chunks.
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	// ErrDocumentExists signals an ingestion for an identifier that is already stored.
	ErrDocumentExists = fmt.Errorf("document already exists: %w", ErrConflict)

	// ErrExtractionFailed signals a document that could not be read.
	ErrExtractionFailed = fmt.Errorf("text extraction failed: %w", ErrUpstreamUnavailable)
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = fmt.Errorf("embedding provider error: %w", ErrUpstreamUnavailable)
	// ErrGenerationFailed signals a generative model failure.
	ErrGenerationFailed = fmt.Errorf("generation failed: %w", ErrUpstreamUnavailable)
	// ErrGenerationTimeout signals a generative model call that ran past its deadline.
	ErrGenerationTimeout = fmt.Errorf("generation timed out: %w", ErrUpstreamUnavailable)

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// Kind is the tagged category of a pipeline error.
type Kind string

// Error kinds.
const (
	KindNone                 Kind = ""
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindInternal             Kind = "internal"
)

// KindOf classifies err. Nil yields KindNone, unknown errors KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the failure may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// Stage names the pipeline step that failed.
type Stage string

// Pipeline stages.
const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStorage    Stage = "storage"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

// PipelineError attaches the document and stage to an underlying error.
type PipelineError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *PipelineError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.DocumentID, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps err with stage context. Returns nil for a nil err.
// An err that already carries a stage is returned unchanged so the innermost stage wins.
func NewPipelineError(stage Stage, documentID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{DocumentID: documentID, Stage: stage, Err: err}
}

// StageOf extracts the stage and document id carried by err.
func StageOf(err error) (Stage, string, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, pe.DocumentID, true
	}
	return "", "", false
}
