package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docqa/pkg/sdk"
)

const defaultProbeQuestion = "What is this document about?"

type monitorOptions struct {
	interval time.Duration
	document string
	question string
	output   string
	count    int
}

// sample is one monitoring tick. Resource figures come from the server's /metrics.
type sample struct {
	At            time.Time `json:"at"`
	HealthStatus  string    `json:"health_status"`
	HealthLatency float64   `json:"health_latency_ms"`

	CPUSeconds float64 `json:"cpu_seconds,omitempty"`
	// CPUPercent is CPU time over wall time since the previous sample; 100 is one core.
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	ResidentBytes uint64  `json:"resident_memory_bytes,omitempty"`
	OpenFDs       int     `json:"open_fds,omitempty"`
	Goroutines    int     `json:"goroutines,omitempty"`
	StoreBytes    uint64  `json:"store_file_bytes,omitempty"`
	ResourceError string  `json:"resource_error,omitempty"`

	AskLatency float64 `json:"ask_latency_ms,omitempty"`
	AskChunks  int     `json:"ask_chunks,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func newMonitorCommand(g *globalOptions) *cobra.Command {
	opts := &monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Sample health, resource usage and answer latency",
		Long: `Checks /health and scrapes the server's process figures from /metrics every
interval and, when --document is set, asks a probe question against it.
Samples are written to a JSON file on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMonitor(ctx, cmd.OutOrStdout(), client, opts)
		},
	}
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 10*time.Second, "time between samples")
	cmd.Flags().StringVarP(&opts.document, "document", "d", "", "document id for the probe question")
	cmd.Flags().StringVar(&opts.question, "question", defaultProbeQuestion, "probe question")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "samples file (default monitor-<timestamp>.json)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "stop after n samples (0 runs until interrupted)")
	return cmd
}

func runMonitor(ctx context.Context, out io.Writer, client *sdk.Client, opts *monitorOptions) error {
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}

	var (
		samples []sample
		prev    *sample
	)
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

loop:
	for {
		s := takeSample(ctx, client, opts, prev)
		prev = &s
		samples = append(samples, s)
		printSample(out, s)

		if opts.count > 0 && len(samples) >= opts.count {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	path := opts.output
	if path == "" {
		path = fmt.Sprintf("monitor-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	if err := writeSamples(path, samples); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d samples written to %s\n", len(samples), path)
	return nil
}

func takeSample(ctx context.Context, client *sdk.Client, opts *monitorOptions, prev *sample) sample {
	s := sample{At: time.Now().UTC()}

	h, err := client.Health(ctx)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.HealthStatus = h.Status
	s.HealthLatency = ms(h.Latency)

	if st, err := client.ProcessStats(ctx); err != nil {
		s.ResourceError = err.Error()
	} else {
		s.CPUSeconds = st.CPUSeconds
		s.ResidentBytes = st.ResidentMemoryBytes
		s.OpenFDs = st.OpenFDs
		s.Goroutines = st.Goroutines
		s.StoreBytes = st.StoreFileBytes
		s.CPUPercent = cpuPercent(prev, s)
	}

	if opts.document == "" {
		return s
	}
	start := time.Now()
	answer, err := client.Ask(ctx, opts.document, opts.question)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.AskLatency = ms(time.Since(start))
	s.AskChunks = answer.ContextChunksUsed
	return s
}

// cpuPercent is zero for the first sample and after a server restart resets the counter.
func cpuPercent(prev *sample, cur sample) float64 {
	if prev == nil || prev.CPUSeconds == 0 || cur.CPUSeconds < prev.CPUSeconds {
		return 0
	}
	wall := cur.At.Sub(prev.At).Seconds()
	if wall <= 0 {
		return 0
	}
	return (cur.CPUSeconds - prev.CPUSeconds) / wall * 100
}

func printSample(out io.Writer, s sample) {
	line := fmt.Sprintf("%s health=%s %.1fms", s.At.Format(time.RFC3339), s.HealthStatus, s.HealthLatency)
	if s.ResidentBytes > 0 {
		line += fmt.Sprintf(" cpu=%.1f%% rss=%s fds=%d goroutines=%d",
			s.CPUPercent, humanize.IBytes(s.ResidentBytes), s.OpenFDs, s.Goroutines)
	}
	if s.StoreBytes > 0 {
		line += " store=" + humanize.IBytes(s.StoreBytes)
	}
	if s.ResourceError != "" {
		line += " resources=unavailable"
	}
	if s.AskLatency > 0 {
		line += fmt.Sprintf(" ask=%.1fms chunks=%d", s.AskLatency, s.AskChunks)
	}
	if s.Error != "" {
		line += " error=" + s.Error
	}
	fmt.Fprintln(out, line)
}

func writeSamples(path string, samples []sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
