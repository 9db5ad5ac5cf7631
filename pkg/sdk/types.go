package sdk

import (
	"io"
	"time"
)

// UploadRequest is a document file to ingest.
type UploadRequest struct {
	// Filename decides the format by extension (.pdf, .docx, .txt).
	Filename string
	Content  io.Reader
	// DocumentID is optional; the server derives one from Filename when empty.
	DocumentID string
}

// IngestResult summarizes a stored document.
type IngestResult struct {
	DocumentID      string
	Title           string
	Format          string
	ChunksCreated   int
	PagesProcessed  int
	EmbeddingTokens int
}

// Document is a stored document.
type Document struct {
	ID        string
	Title     string
	Filename  string
	Format    string
	Pages     int
	Chunks    int
	CreatedAt time.Time
}

// Passage is a chunk ranked against a query.
type Passage struct {
	ChunkIndex int
	// Page is 0 when the source has no pages.
	Page       int
	Text       string
	Similarity float64
}

// Source is a chunk that was given to the model as context.
type Source struct {
	ChunkIndex int
	Page       int
	Similarity float64
}

// Answer is the generated reply to a question.
type Answer struct {
	Question          string
	Text              string
	DocumentID        string
	ContextChunksUsed int
	Sources           []Source
}

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport is embedding token consumption for one period.
type UsageReport struct {
	Period          UsagePeriod
	PeriodStart     time.Time
	PeriodEnd       time.Time
	TokensUsed      int64
	TokensLimit     int64
	TokensRemaining int64
	IsExhausted     bool
}

// HealthStatus is the aggregated server health.
type HealthStatus struct {
	Status string
	Checks map[string]string
	// Latency is the client-side round trip.
	Latency time.Duration
}

// Healthy reports whether every dependency answered.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }
