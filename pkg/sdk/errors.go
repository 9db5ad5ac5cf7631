package sdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/docqa/internal/domain"
	chitransport "github.com/kailas-cloud/docqa/internal/transport/chi"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidConfiguration   = domain.ErrInvalidConfiguration
	ErrNotFound               = domain.ErrNotFound
	ErrConflict               = domain.ErrConflict
	ErrUpstreamUnavailable    = domain.ErrUpstreamUnavailable
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrDocumentExists         = domain.ErrDocumentExists
	ErrEmptyDocument          = domain.ErrEmptyDocument
	ErrUnsupportedFormat      = domain.ErrUnsupportedFormat
	ErrInvalidTopK            = domain.ErrInvalidTopK
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrGenerationTimeout      = domain.ErrGenerationTimeout
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
)

// ErrUnauthorized is returned when the API key is missing or wrong.
var ErrUnauthorized = errors.New("unauthorized")

// codeSentinels maps wire error codes to the sentinel they stand for.
var codeSentinels = map[string]error{
	chitransport.CodeBadRequest:           domain.ErrInvalidConfiguration,
	chitransport.CodeInvalidConfiguration: domain.ErrInvalidConfiguration,
	chitransport.CodePayloadTooLarge:      domain.ErrInvalidConfiguration,
	chitransport.CodeVectorDimMismatch:    domain.ErrVectorDimMismatch,
	chitransport.CodeEmptyDocument:        domain.ErrEmptyDocument,
	chitransport.CodeUnsupportedFormat:    domain.ErrUnsupportedFormat,
	chitransport.CodeInvalidTopK:          domain.ErrInvalidTopK,
	chitransport.CodeDocumentNotFound:     domain.ErrDocumentNotFound,
	chitransport.CodeDocumentExists:       domain.ErrDocumentExists,
	chitransport.CodeQuotaExceeded:        domain.ErrEmbeddingQuotaExceeded,
	chitransport.CodeGenerationTimeout:    domain.ErrGenerationTimeout,
	chitransport.CodeUpstreamUnavailable:  domain.ErrUpstreamUnavailable,
	chitransport.CodeUnauthorized:         ErrUnauthorized,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Stage      string
	DocumentID string
	retryable  bool
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("docqa: %d %s: %s", e.Status, e.Code, e.Message)
	if e.Stage != "" {
		msg += " (stage " + e.Stage
		if e.DocumentID != "" {
			msg += ", document " + e.DocumentID
		}
		msg += ")"
	}
	return msg
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool { return e.retryable }

// Is matches the sentinel behind the error code, including its kind.
func (e *APIError) Is(target error) bool {
	sentinel := e.sentinel()
	if sentinel == nil {
		return false
	}
	return sentinel == target || errors.Is(sentinel, target)
}

func (e *APIError) sentinel() error {
	if s, ok := codeSentinels[e.Code]; ok {
		return s
	}
	switch {
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.Status >= http.StatusInternalServerError:
		return domain.ErrUpstreamUnavailable
	}
	return nil
}

func newAPIError(status int, body chitransport.ErrorResponse) *APIError {
	if body.Code == "" {
		body.Code = fallbackCode(status)
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	return &APIError{
		Status:     status,
		Code:       body.Code,
		Message:    body.Message,
		Stage:      body.Stage,
		DocumentID: body.DocumentID,
		retryable:  body.Retryable || status == http.StatusServiceUnavailable,
	}
}

// fallbackCode names responses that did not carry a JSON error body, such as proxy failures.
func fallbackCode(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return chitransport.CodeUnauthorized
	case status == http.StatusNotFound:
		return chitransport.CodeDocumentNotFound
	case status == http.StatusRequestEntityTooLarge:
		return chitransport.CodePayloadTooLarge
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return chitransport.CodeUpstreamUnavailable
	case status >= http.StatusInternalServerError:
		return chitransport.CodeInternalError
	default:
		return chitransport.CodeBadRequest
	}
}
