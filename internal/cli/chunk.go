package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
	"github.com/kailas-cloud/docqa/internal/extract"
	"github.com/kailas-cloud/docqa/internal/segment"
)

type chunkOptions struct {
	maxWords     int
	wordsPerPage int
	full         bool
}

func newChunkCommand() *cobra.Command {
	opts := &chunkOptions{}
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Preview how a file is split into chunks",
		Long: `Extracts text from a local PDF, DOCX or text file and prints the chunks
the server would store, without contacting it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.maxWords, "max-words", domain.DefaultMaxWords, "maximum words per chunk")
	cmd.Flags().IntVar(&opts.wordsPerPage, "words-per-page", domain.DefaultWordsPerPage,
		"page estimate for unpaginated formats")
	cmd.Flags().BoolVar(&opts.full, "full", false, "print whole chunk texts instead of a preview")
	return cmd
}

func runChunk(cmd *cobra.Command, path string, opts *chunkOptions) error {
	c, err := chunker.New(segment.New(), opts.maxWords)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res, err := extract.NewRegistry(opts.wordsPerPage).Extract(path, content)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	drafts := c.ChunkUnits(res.Units)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: format=%s title=%q pages=%d chunks=%d\n",
		path, res.Format, res.Title, res.Pages, len(drafts))

	for _, d := range drafts {
		header := fmt.Sprintf("[%d]", d.Index)
		if d.Page > 0 {
			header += fmt.Sprintf(" page %d", d.Page)
		}
		fmt.Fprintf(out, "\n%s (%d words)\n", header, d.Words())
		text := d.Text
		if !opts.full {
			text = preview(text, 200)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
