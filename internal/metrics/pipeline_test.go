package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()

	IngestTotal.WithLabelValues("pdf", "success").Inc()
	if got := testutil.ToFloat64(IngestTotal.WithLabelValues("pdf", "success")); got < 1 {
		t.Errorf("expected ingest_total >= 1, got %f", got)
	}

	var are prometheus.AlreadyRegisteredError
	if err := prometheus.Register(ChunksIngestedTotal); !errors.As(err, &are) {
		t.Errorf("expected AlreadyRegisteredError, got %v", err)
	}
}

func TestGenerationMetrics_Labels(t *testing.T) {
	GenerationRequestsTotal.WithLabelValues("ollama", "llama3.1:8b", "timeout").Inc()
	GenerationDuration.WithLabelValues("ollama", "llama3.1:8b").Observe(1.5)

	if got := testutil.ToFloat64(GenerationRequestsTotal.WithLabelValues("ollama", "llama3.1:8b", "timeout")); got < 1 {
		t.Errorf("expected generation_requests_total >= 1, got %f", got)
	}
	if testutil.CollectAndCount(GenerationDuration) == 0 {
		t.Error("expected generation_duration_seconds observations")
	}
}
