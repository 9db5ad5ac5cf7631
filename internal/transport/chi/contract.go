package chi

import (
	"context"

	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
	askuc "github.com/kailas-cloud/docqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

// Ingester stores uploaded documents.
type Ingester interface {
	Ingest(ctx context.Context, up ingestuc.Upload) (ingestuc.Report, error)
}

// Documents manages stored documents.
type Documents interface {
	List(ctx context.Context) ([]domdoc.Document, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Searcher ranks passages of one document against a free-text query.
type Searcher interface {
	Search(ctx context.Context, documentID, query string, topK int) ([]chunk.Scored, error)
}

// Asker answers questions about a document.
type Asker interface {
	Ask(ctx context.Context, q askuc.Question) (askuc.Answer, error)
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
