// Package cli implements the docqactl operator commands.
package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docqa/pkg/sdk"
)

// Environment variables read for flag defaults.
const (
	EnvAPIURL = "DOCQA_API_URL"
	EnvAPIKey = "DOCQA_API_KEY"
)

const defaultAPIURL = "http://localhost:8080"

type globalOptions struct {
	apiURL  string
	apiKey  string
	timeout time.Duration
}

// NewRootCommand builds the docqactl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "docqactl",
		Short: "Operate a docqa server",
		Long: `docqactl loads documents into a docqa server, monitors its latency
and previews how files will be chunked.`,
		SilenceUsage: true,
	}

	apiURL := os.Getenv(EnvAPIURL)
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", apiURL, "docqa server base URL (env "+EnvAPIURL+")")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv(EnvAPIKey), "API key (env "+EnvAPIKey+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", sdk.DefaultTimeout, "per-request timeout")

	root.AddCommand(
		newLoadCommand(opts),
		newMonitorCommand(opts),
		newChunkCommand(),
		newVersionCommand(),
	)
	return root
}

func (o *globalOptions) client() (*sdk.Client, error) {
	return sdk.New(o.apiURL,
		sdk.WithAPIKey(o.apiKey),
		sdk.WithHTTPClient(&http.Client{Timeout: o.timeout}),
		sdk.WithUserAgent("docqactl"),
	)
}
