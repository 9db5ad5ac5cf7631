package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
	"github.com/kailas-cloud/docqa/internal/logger"
	askuc "github.com/kailas-cloud/docqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

// DefaultMaxUploadBytes caps the multipart body of POST /documents.
const DefaultMaxUploadBytes int64 = 50 << 20

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// Server serves the docqa HTTP API.
type Server struct {
	ingest         Ingester
	documents      Documents
	search         Searcher
	ask            Asker
	usage          UsageReporter
	health         HealthChecker
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest Ingester,
	documents Documents,
	search Searcher,
	ask Asker,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest:         ingest,
		documents:      documents,
		search:         search,
		ask:            ask,
		usage:          usage,
		health:         health,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		errorHandlers:  defaultErrorHandlers(),
	}
}

// WithMaxUploadBytes overrides the upload size cap. Non-positive values are ignored.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/documents", s.UploadDocument)
	r.Get("/documents", s.ListDocuments)
	r.Get("/documents/{id}", s.GetDocument)
	r.Delete("/documents/{id}", s.DeleteDocument)
	r.Post("/documents/{id}/search", s.SearchDocument)
	r.Post("/ask", s.Ask)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

// UploadDocument handles POST /documents.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tooLarge := func() {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
	}
	if r.ContentLength > s.maxUploadBytes {
		tooLarge()
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			tooLarge()
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "form field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "read upload: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.ingest.Ingest(ctx, ingestuc.Upload{
		Filename:   header.Filename,
		DocumentID: strings.TrimSpace(r.FormValue("document_id")),
		Content:    content,
	})
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestToResponse(rep))
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]DocumentResponse, len(docs))
	for i := range docs {
		items[i] = documentToResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, Count: len(items)})
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "id")
	n, err := s.documents.Delete(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{DocumentID: id, ChunksDeleted: n})
}

// SearchDocument handles POST /documents/{id}/search.
func (s *Server) SearchDocument(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	topK, ok := explicitCount(w, req.TopK, "top_k")
	if !ok {
		return
	}

	id := gochi.URLParam(r, "id")
	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Search(ctx, id, req.Query, topK)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]PassageResponse, len(results))
	for i := range results {
		items[i] = passageToResponse(&results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{DocumentID: id, Query: req.Query, Results: items})
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "document_id is required")
		return
	}
	topK, ok := explicitCount(w, req.MaxResults, "max_results")
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.ask.Ask(ctx, askuc.Question{
		Text:       req.Question,
		DocumentID: req.DocumentID,
		TopK:       topK,
	})
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(answer))
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, ok := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "period must be 'day' or 'month'")
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// explicitCount rejects an explicitly sent count below 1. Absent means the server default (0).
func explicitCount(w http.ResponseWriter, v *int, name string) (int, bool) {
	if v == nil {
		return 0, true
	}
	if *v <= 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidTopK, name+" must be positive")
		return 0, false
	}
	return *v, true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err), zap.String("kind", string(domain.KindOf(err))))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
