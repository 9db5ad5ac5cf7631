package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion, retrieval and generation Prometheus metrics.
var (
	IngestStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "ingest_stage_duration_seconds",
			Help:      "Duration of each ingestion stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60},
		},
		[]string{"stage"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "ingest_total",
			Help:      "Document ingestions by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	ChunksIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "chunks_ingested_total",
			Help:      "Chunks stored across all ingested documents",
		},
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "retrieval_duration_seconds",
			Help:      "Nearest-chunk lookup duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Name:      "generation_requests_total",
			Help:      "Generative model calls by provider, model and status",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Name:      "generation_duration_seconds",
			Help:      "Generative model call duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"provider", "model"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion, retrieval and generation metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestStageDuration)
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(ChunksIngestedTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationDuration)
	pipelineMetricsRegistered = true
}
