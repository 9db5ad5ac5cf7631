package chi

import (
	"context"
	"net/http"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
	askuc "github.com/kailas-cloud/docqa/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

type mockIngester struct {
	ingestFn func(ctx context.Context, up ingestuc.Upload) (ingestuc.Report, error)
}

func (m *mockIngester) Ingest(ctx context.Context, up ingestuc.Upload) (ingestuc.Report, error) {
	return m.ingestFn(ctx, up)
}

type mockDocuments struct {
	listFn   func(ctx context.Context) ([]domdoc.Document, error)
	getFn    func(ctx context.Context, id string) (domdoc.Document, error)
	deleteFn func(ctx context.Context, id string) (int, error)
}

func (m *mockDocuments) List(ctx context.Context) ([]domdoc.Document, error) { return m.listFn(ctx) }

func (m *mockDocuments) Get(ctx context.Context, id string) (domdoc.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocuments) Delete(ctx context.Context, id string) (int, error) {
	return m.deleteFn(ctx, id)
}

type mockSearcher struct {
	searchFn func(ctx context.Context, documentID, query string, topK int) ([]chunk.Scored, error)
}

func (m *mockSearcher) Search(ctx context.Context, documentID, query string, topK int) ([]chunk.Scored, error) {
	return m.searchFn(ctx, documentID, query, topK)
}

type mockAsker struct {
	askFn func(ctx context.Context, q askuc.Question) (askuc.Answer, error)
}

func (m *mockAsker) Ask(ctx context.Context, q askuc.Question) (askuc.Answer, error) {
	return m.askFn(ctx, q)
}

type mockUsage struct {
	reportFn func(ctx context.Context, period domusage.Period) domusage.Report
}

func (m *mockUsage) GetReport(ctx context.Context, period domusage.Period) domusage.Report {
	return m.reportFn(ctx, period)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type testDeps struct {
	ingest    *mockIngester
	documents *mockDocuments
	search    *mockSearcher
	ask       *mockAsker
	usage     *mockUsage
	health    *mockHealth
}

func newTestRouter(t *testing.T, d *testDeps) http.Handler {
	t.Helper()
	if d.ingest == nil {
		d.ingest = &mockIngester{}
	}
	if d.documents == nil {
		d.documents = &mockDocuments{}
	}
	if d.search == nil {
		d.search = &mockSearcher{}
	}
	if d.ask == nil {
		d.ask = &mockAsker{}
	}
	if d.usage == nil {
		d.usage = &mockUsage{}
	}
	if d.health == nil {
		d.health = &mockHealth{}
	}
	srv := NewServer(d.ingest, d.documents, d.search, d.ask, d.usage, d.health, zap.NewNop())
	r := gochi.NewRouter()
	srv.Routes(r)
	return r
}

func testDocument(t *testing.T, id string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, "Moby Dick", id+".pdf", "pdf", 12, 40,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	return d
}
