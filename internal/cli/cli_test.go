package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	chitransport "github.com/kailas-cloud/docqa/internal/transport/chi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeServer answers health, metrics, upload and ask. Uploads of files named bad.* fail.
type fakeServer struct {
	degraded  bool
	noMetrics bool
	uploads   atomic.Int32
	asks      atomic.Int32
	scrapes   atomic.Int32
}

// processMetrics renders the process series with CPU time growing half a second per scrape.
func processMetrics(scrape int32) string {
	return fmt.Sprintf(`# HELP process_cpu_seconds_total Total user and system CPU time spent in seconds.
# TYPE process_cpu_seconds_total counter
process_cpu_seconds_total %g
# TYPE process_resident_memory_bytes gauge
process_resident_memory_bytes 5.24288e+07
# TYPE process_open_fds gauge
process_open_fds 17
# TYPE go_goroutines gauge
go_goroutines 23
# TYPE docqa_store_file_bytes gauge
docqa_store_file_bytes 4096
# TYPE docqa_http_requests_total counter
docqa_http_requests_total{method="GET",path="/health",status="200"} 4
`, 2+0.5*float64(scrape))
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/metrics" && !f.noMetrics:
		n := f.scrapes.Add(1)
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = io.WriteString(w, processMetrics(n))
	case r.URL.Path == "/health":
		if f.degraded {
			writeJSON(w, http.StatusServiceUnavailable, chitransport.HealthResponse{
				Status: "degraded", Checks: map[string]string{"database": "error"},
			})
			return
		}
		writeJSON(w, http.StatusOK, chitransport.HealthResponse{Status: "ok", Checks: map[string]string{"database": "ok"}})
	case r.Method == http.MethodPost && r.URL.Path == "/documents":
		f.uploads.Add(1)
		_, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, chitransport.ErrorResponse{Code: chitransport.CodeBadRequest})
			return
		}
		if strings.HasPrefix(hdr.Filename, "bad.") {
			writeJSON(w, http.StatusUnprocessableEntity, chitransport.ErrorResponse{
				Code: chitransport.CodeEmptyDocument, Message: "document has no extractable text",
			})
			return
		}
		id := r.FormValue("document_id")
		if id == "" {
			id = strings.TrimSuffix(hdr.Filename, filepath.Ext(hdr.Filename))
		}
		w.Header().Set("X-Embedding-Tokens", "10")
		writeJSON(w, http.StatusCreated, chitransport.IngestResponse{DocumentID: id, ChunksCreated: 2})
	case r.Method == http.MethodPost && r.URL.Path == "/ask":
		f.asks.Add(1)
		writeJSON(w, http.StatusOK, chitransport.AskResponse{Answer: "fine", ContextChunksUsed: 3})
	default:
		http.NotFound(w, r)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "docqactl version dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRootCommand_Flags(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"api-url", "api-key", "timeout"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}

func TestLoad(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":          "A cat sat.",
		"sub/b.txt":      "It was happy.",
		"notes.md":       "skipped by extension",
		".hidden/c.txt":  "skipped hidden dir",
		"sub/readme.csv": "skipped",
	})

	out, err := execute(t, "--api-url", srv.URL, "load", dir, "--workers", "2", "--prefix", "kb-")
	if err != nil {
		t.Fatalf("load: %v\n%s", err, out)
	}
	if got := fake.uploads.Load(); got != 2 {
		t.Errorf("uploads = %d, want 2", got)
	}
	for _, want := range []string{"kb-a", "kb-b", "2 uploaded, 0 failed, 4 chunks, 20 embedding tokens"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoad_FailureExitsNonZero(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"good.txt": "Fine text.", "bad.txt": ""})

	out, err := execute(t, "--api-url", srv.URL, "load", dir)
	if err == nil {
		t.Fatalf("expected error, output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "1 of 2 uploads failed") {
		t.Errorf("unexpected error %v", err)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "empty_document") {
		t.Errorf("output missing failure line:\n%s", out)
	}
}

func TestLoad_UnhealthyServer(t *testing.T) {
	fake := &fakeServer{degraded: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "A cat sat."})

	if _, err := execute(t, "--api-url", srv.URL, "load", dir); err == nil {
		t.Fatal("expected error for degraded server")
	}
	if fake.uploads.Load() != 0 {
		t.Error("nothing should be uploaded to a degraded server")
	}
}

func TestLoad_InvalidWorkers(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "x"})
	if _, err := execute(t, "load", dir, "--workers", "0"); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestMonitor(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "samples.json")
	out, err := execute(t, "--api-url", srv.URL, "monitor",
		"--interval", "5ms", "--count", "2", "--document", "kb", "--output", path)
	if err != nil {
		t.Fatalf("monitor: %v\n%s", err, out)
	}
	if fake.asks.Load() != 2 {
		t.Errorf("asks = %d, want 2", fake.asks.Load())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	var samples []sample
	if err := json.Unmarshal(data, &samples); err != nil {
		t.Fatalf("decode samples: %v", err)
	}
	if len(samples) != 2 || samples[0].HealthStatus != "ok" || samples[0].AskChunks != 3 {
		t.Fatalf("unexpected samples: %+v", samples)
	}

	first, second := samples[0], samples[1]
	if first.ResidentBytes != 52428800 || first.OpenFDs != 17 || first.Goroutines != 23 || first.StoreBytes != 4096 {
		t.Errorf("resource figures not recorded: %+v", first)
	}
	if first.CPUSeconds != 2.5 || second.CPUSeconds != 3 {
		t.Errorf("cpu seconds = %v, %v", first.CPUSeconds, second.CPUSeconds)
	}
	if first.CPUPercent != 0 || second.CPUPercent <= 0 {
		t.Errorf("cpu percent = %v, %v; want 0 then positive", first.CPUPercent, second.CPUPercent)
	}
	for _, key := range []string{`"resident_memory_bytes": 52428800`, `"cpu_percent"`, `"store_file_bytes": 4096`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("samples file missing %s:\n%s", key, data)
		}
	}
	for _, want := range []string{"rss=50 MiB", "fds=17", "goroutines=23", "store=4.0 KiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMonitor_WithoutMetrics(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{noMetrics: true})
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "samples.json")
	out, err := execute(t, "--api-url", srv.URL, "monitor", "--interval", "5ms", "--count", "1", "--output", path)
	if err != nil {
		t.Fatalf("monitor: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	var samples []sample
	if err := json.Unmarshal(data, &samples); err != nil {
		t.Fatalf("decode samples: %v", err)
	}
	if len(samples) != 1 || samples[0].HealthStatus != "ok" || samples[0].Error != "" {
		t.Fatalf("health must still be sampled: %+v", samples)
	}
	if samples[0].ResourceError == "" || samples[0].ResidentBytes != 0 {
		t.Errorf("expected resource error, got %+v", samples[0])
	}
	if !strings.Contains(out, "resources=unavailable") {
		t.Errorf("output missing resources marker:\n%s", out)
	}
}

func TestCPUPercent(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	prev := &sample{At: t0, CPUSeconds: 10}

	if got := cpuPercent(prev, sample{At: t0.Add(2 * time.Second), CPUSeconds: 11}); got != 50 {
		t.Errorf("half a core: got %v", got)
	}
	if got := cpuPercent(prev, sample{At: t0.Add(time.Second), CPUSeconds: 1}); got != 0 {
		t.Errorf("counter reset: got %v", got)
	}
	if got := cpuPercent(nil, sample{At: t0, CPUSeconds: 5}); got != 0 {
		t.Errorf("first sample: got %v", got)
	}
}

func TestChunkCommand(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"story.txt": "A cat sat. It was happy. The dog barked loudly outside.",
	})

	out, err := execute(t, "chunk", filepath.Join(dir, "story.txt"), "--max-words", "5")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, want := range []string{
		"format=txt", "chunks=2",
		"[0] (5 words)", "A cat sat. It was happy.",
		"[1] (5 words)", "The dog barked loudly outside.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestChunkCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"table.csv": "a,b"})

	if _, err := execute(t, "chunk", filepath.Join(dir, "table.csv")); err == nil {
		t.Error("expected unsupported format error")
	}
	if _, err := execute(t, "chunk", filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected read error")
	}
	if _, err := execute(t, "chunk", filepath.Join(dir, "table.csv"), "--max-words", "0"); err == nil {
		t.Error("expected error for zero max words")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("a  b\n c", 10); got != "a b c" {
		t.Errorf("preview = %q", got)
	}
	if got := preview(strings.Repeat("x", 12), 10); got != strings.Repeat("x", 10)+"..." {
		t.Errorf("preview = %q", got)
	}
}
