package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/extract"
	"github.com/kailas-cloud/docqa/pkg/sdk"
)

type loadOptions struct {
	exts      []string
	workers   int
	prefix    string
	skipCheck bool
}

// loadResult is the outcome of one file upload.
type loadResult struct {
	Path     string
	ID       string
	Chunks   int
	Tokens   int
	Duration time.Duration
	Err      error
}

func newLoadCommand(g *globalOptions) *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load <dir>",
		Short: "Upload every document in a directory",
		Long: `Walks a directory and uploads every matching file through the API.
The server health is checked first. The command exits non-zero when any upload fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			return runLoad(cmd.Context(), cmd.OutOrStdout(), client, args[0], opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.exts, "ext",
		[]string{extract.FormatPDF, extract.FormatDOCX, extract.FormatTXT}, "file extensions to upload")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "parallel uploads")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "prefix for document ids")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-health-check", false, "upload without checking server health")
	return cmd
}

func runLoad(ctx context.Context, out io.Writer, client *sdk.Client, dir string, opts *loadOptions) error {
	if opts.workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", opts.workers)
	}

	files, err := collectFiles(dir, opts.exts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "no files with extensions %s under %s\n", strings.Join(opts.exts, ","), dir)
		return nil
	}

	if !opts.skipCheck {
		h, err := client.Health(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		if !h.Healthy() {
			return fmt.Errorf("server is %s: %v", h.Status, h.Checks)
		}
	}

	fmt.Fprintf(out, "uploading %d files with %d workers\n", len(files), opts.workers)

	var (
		mu      sync.Mutex
		results = make([]loadResult, 0, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)
	start := time.Now()

	for _, path := range files {
		g.Go(func() error {
			res := uploadFile(gctx, client, path, opts.prefix)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			printResult(out, res)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(out, results, time.Since(start))
}

func uploadFile(ctx context.Context, client *sdk.Client, path, prefix string) loadResult {
	start := time.Now()
	res := loadResult{Path: path}

	f, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer f.Close()

	req := sdk.UploadRequest{Filename: filepath.Base(path), Content: f}
	if prefix != "" {
		req.DocumentID = prefix + document.DeriveID(path)
	}
	ingested, err := client.Upload(ctx, req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.ID = ingested.DocumentID
	res.Chunks = ingested.ChunksCreated
	res.Tokens = ingested.EmbeddingTokens
	return res
}

// collectFiles returns matching regular files under dir in lexical order.
func collectFiles(dir string, exts []string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && want[extract.FormatOf(path)] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func printResult(out io.Writer, r loadResult) {
	if r.Err != nil {
		retry := ""
		var apiErr *sdk.APIError
		if errors.As(r.Err, &apiErr) && apiErr.Retryable() {
			retry = " (retryable)"
		}
		fmt.Fprintf(out, "FAIL %s: %v%s\n", r.Path, r.Err, retry)
		return
	}
	fmt.Fprintf(out, "ok   %s -> %s chunks=%d tokens=%d %s\n",
		r.Path, r.ID, r.Chunks, r.Tokens, r.Duration.Round(time.Millisecond))
}

func summarize(out io.Writer, results []loadResult, elapsed time.Duration) error {
	var failed, chunks, tokens int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		chunks += r.Chunks
		tokens += r.Tokens
	}
	fmt.Fprintf(out, "\n%d uploaded, %d failed, %d chunks, %d embedding tokens in %s\n",
		len(results)-failed, failed, chunks, tokens, elapsed.Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	return nil
}
