package chi

import (
	"time"

	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
	askuc "github.com/kailas-cloud/docqa/internal/usecase/ask"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Stage      string `json:"stage,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// IngestResponse is returned by POST /documents.
type IngestResponse struct {
	Message        string `json:"message"`
	DocumentID     string `json:"document_id"`
	Title          string `json:"title"`
	Format         string `json:"format"`
	ChunksCreated  int    `json:"chunks_created"`
	PagesProcessed int    `json:"pages_processed"`
}

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentListResponse is returned by GET /documents.
type DocumentListResponse struct {
	Items []DocumentResponse `json:"items"`
	Count int                `json:"count"`
}

// DeleteResponse is returned by DELETE /documents/{id}.
type DeleteResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// SearchRequest is the body of POST /documents/{id}/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// PassageResponse is one ranked chunk.
type PassageResponse struct {
	ChunkIndex int     `json:"chunk_index"`
	Page       *int    `json:"page,omitempty"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// SearchResponse is returned by POST /documents/{id}/search.
type SearchResponse struct {
	DocumentID string            `json:"document_id"`
	Query      string            `json:"query"`
	Results    []PassageResponse `json:"results"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id"`
	MaxResults *int   `json:"max_results,omitempty"`
}

// SourceResponse points at a chunk used as context.
type SourceResponse struct {
	ChunkIndex int     `json:"chunk_index"`
	Page       *int    `json:"page,omitempty"`
	Similarity float64 `json:"similarity"`
}

// AskResponse is returned by POST /ask.
type AskResponse struct {
	Question          string           `json:"question"`
	Answer            string           `json:"answer"`
	DocumentID        string           `json:"document_id"`
	ContextChunksUsed int              `json:"context_chunks_used"`
	Sources           []SourceResponse `json:"sources"`
}

// UsageResponse is returned by GET /usage.
type UsageResponse struct {
	Period          string     `json:"period"`
	PeriodStartAt   *time.Time `json:"period_start_at,omitempty"`
	PeriodEndAt     *time.Time `json:"period_end_at,omitempty"`
	TokensUsed      int64      `json:"tokens_used"`
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func ingestToResponse(rep ingestuc.Report) IngestResponse {
	return IngestResponse{
		Message:        "document '" + rep.DocumentID + "' ingested",
		DocumentID:     rep.DocumentID,
		Title:          rep.Title,
		Format:         rep.Format,
		ChunksCreated:  rep.ChunksCreated,
		PagesProcessed: rep.PagesProcessed,
	}
}

func documentToResponse(d *domdoc.Document) DocumentResponse {
	return DocumentResponse{
		DocumentID: d.ID(),
		Title:      d.Title(),
		Filename:   d.Filename(),
		Format:     d.Format(),
		Pages:      d.Pages(),
		Chunks:     d.Chunks(),
		CreatedAt:  d.CreatedAt().UTC(),
	}
}

func passageToResponse(s *chunk.Scored) PassageResponse {
	return PassageResponse{
		ChunkIndex: s.Chunk.Index(),
		Page:       pagePtr(&s.Chunk),
		Text:       s.Chunk.Text(),
		Similarity: s.Similarity,
	}
}

func answerToResponse(a askuc.Answer) AskResponse {
	sources := make([]SourceResponse, len(a.Sources))
	for i, src := range a.Sources {
		sources[i] = SourceResponse{ChunkIndex: src.ChunkIndex, Similarity: src.Similarity}
		if src.Page > 0 {
			p := src.Page
			sources[i].Page = &p
		}
	}
	return AskResponse{
		Question:          a.Question,
		Answer:            a.Answer,
		DocumentID:        a.DocumentID,
		ContextChunksUsed: a.ContextChunksUsed,
		Sources:           sources,
	}
}

func usageToResponse(r domusage.Report) UsageResponse {
	resp := UsageResponse{
		Period:          string(r.Period()),
		TokensUsed:      r.TokensUsed(),
		TokensLimit:     r.TokensLimit(),
		TokensRemaining: r.TokensRemaining(),
		IsExhausted:     r.IsExhausted(),
	}
	if r.PeriodStart() > 0 {
		start := time.UnixMilli(r.PeriodStart()).UTC()
		end := time.UnixMilli(r.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	return resp
}

func pagePtr(c *chunk.Chunk) *int {
	if p, ok := c.Page(); ok {
		return &p
	}
	return nil
}
