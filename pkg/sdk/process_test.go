package sdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestProcessStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	cpu := prometheus.NewCounter(prometheus.CounterOpts{Name: "process_cpu_seconds_total", Help: "cpu"})
	rss := prometheus.NewGauge(prometheus.GaugeOpts{Name: "process_resident_memory_bytes", Help: "rss"})
	fds := prometheus.NewGauge(prometheus.GaugeOpts{Name: "process_open_fds", Help: "fds"})
	gor := prometheus.NewGauge(prometheus.GaugeOpts{Name: "go_goroutines", Help: "goroutines"})
	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "docqa_http_requests_total", Help: "reqs"},
		[]string{"path"})
	reg.MustRegister(cpu, rss, fds, gor, reqs)
	cpu.Add(12.75)
	rss.Set(64 << 20)
	fds.Set(31)
	gor.Set(9)
	reqs.WithLabelValues("/documents/{id}").Inc()

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Accept"), "text/plain") {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		metricsHandler.ServeHTTP(w, r)
	}, WithAPIKey("k"))

	st, err := c.ProcessStats(context.Background())
	if err != nil {
		t.Fatalf("ProcessStats: %v", err)
	}
	if st.CPUSeconds != 12.75 || st.ResidentMemoryBytes != 64<<20 || st.OpenFDs != 31 || st.Goroutines != 9 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.StoreFileBytes != 0 || len(st.Missing) != 1 || st.Missing[0] != "docqa_store_file_bytes" {
		t.Errorf("store size should be reported missing: %+v", st)
	}
	if st.ScrapedAt.IsZero() {
		t.Error("ScrapedAt not set")
	}
}

func TestProcessStats_Errors(t *testing.T) {
	notFound := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	_, err := notFound.ProcessStats(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}

	garbage := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("process_cpu_seconds_total not-a-number\n"))
	})
	if _, err := garbage.ProcessStats(context.Background()); err == nil || !strings.Contains(err.Error(), "parse metrics") {
		t.Errorf("expected parse error, got %v", err)
	}
}
