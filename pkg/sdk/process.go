package sdk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Series read by ProcessStats.
const (
	metricCPUSeconds  = "process_cpu_seconds_total"
	metricResident    = "process_resident_memory_bytes"
	metricOpenFDs     = "process_open_fds"
	metricGoroutines  = "go_goroutines"
	metricStoreFileSz = "docqa_store_file_bytes"
)

// ProcessStats are the server's resource figures scraped from /metrics.
// A figure the server does not export (process_* on macOS, the store size
// with the Postgres driver) is left at zero and flagged in Missing.
type ProcessStats struct {
	CPUSeconds          float64
	ResidentMemoryBytes uint64
	OpenFDs             int
	Goroutines          int
	// StoreFileBytes is the embedded database plus its write-ahead log.
	StoreFileBytes uint64
	Missing        []string
	ScrapedAt      time.Time
}

// ProcessStats fetches /metrics and extracts the server's process figures.
func (c *Client) ProcessStats(ctx context.Context) (_ *ProcessStats, err error) {
	defer func(start time.Time) { c.obs.observe("process_stats", start, err) }(time.Now())

	req, err := c.newRequest(ctx, http.MethodGet, "/metrics", nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docqa: metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("docqa: parse metrics: %w", err)
	}

	st := &ProcessStats{ScrapedAt: time.Now()}
	read := func(name string) float64 {
		v, ok := firstValue(families[name])
		if !ok {
			st.Missing = append(st.Missing, name)
		}
		return v
	}
	st.CPUSeconds = read(metricCPUSeconds)
	st.ResidentMemoryBytes = uint64(read(metricResident))
	st.OpenFDs = int(read(metricOpenFDs))
	st.Goroutines = int(read(metricGoroutines))
	st.StoreFileBytes = uint64(read(metricStoreFileSz))
	return st, nil
}

// firstValue returns the value of the family's first unlabelled sample.
func firstValue(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0, false
	}
	m := mf.GetMetric()[0]
	switch mf.GetType() {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue(), true
	default:
		return 0, false
	}
}
