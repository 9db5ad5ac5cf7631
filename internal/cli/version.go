package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docqa/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docqactl version %s\n", version.String())
		},
	}
}
