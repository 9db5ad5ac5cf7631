package chi

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Error codes of ErrorResponse.
const (
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodePayloadTooLarge      = "payload_too_large"
	CodeInvalidConfiguration = "invalid_configuration"
	CodeVectorDimMismatch    = "vector_dim_mismatch"
	CodeEmptyDocument        = "empty_document"
	CodeUnsupportedFormat    = "unsupported_format"
	CodeInvalidTopK          = "invalid_top_k"
	CodeDocumentNotFound     = "document_not_found"
	CodeDocumentExists       = "document_exists"
	CodeQuotaExceeded        = "embedding_quota_exceeded"
	CodeGenerationTimeout    = "generation_timeout"
	CodeUpstreamUnavailable  = "upstream_unavailable"
	CodeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers is ordered: a specific sentinel must come before the kind it wraps.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusUnprocessableEntity, CodeEmptyDocument),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat),
		sentinelHandler(domain.ErrInvalidTopK, http.StatusBadRequest, CodeInvalidTopK),
		sentinelHandler(domain.ErrInvalidConfiguration, http.StatusBadRequest, CodeInvalidConfiguration),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeDocumentExists),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrGenerationTimeout, http.StatusGatewayTimeout, CodeGenerationTimeout),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
	}
}

// safeMessages lists the sentinels whose text may reach the client, most specific first.
var safeMessages = []error{
	domain.ErrVectorDimMismatch,
	domain.ErrEmptyDocument,
	domain.ErrUnsupportedFormat,
	domain.ErrInvalidTopK,
	domain.ErrInvalidDocument,
	domain.ErrDocumentNotFound,
	domain.ErrDocumentExists,
	domain.ErrEmbeddingQuotaExceeded,
	domain.ErrExtractionFailed,
	domain.ErrEmbeddingProviderError,
	domain.ErrGenerationTimeout,
	domain.ErrGenerationFailed,
	domain.ErrInvalidConfiguration,
	domain.ErrNotFound,
	domain.ErrConflict,
	domain.ErrUpstreamUnavailable,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range safeMessages {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{
			Code:      code,
			Message:   msg,
			Retryable: domain.IsRetryable(err),
		}
		if stage, id, ok := domain.StageOf(err); ok {
			resp.Stage = string(stage)
			resp.DocumentID = id
		}
		writeJSON(w, status, resp)
		return true
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
