// Package version reports build metadata stamped in by the linker, e.g.
//
//	go build -ldflags "-X github.com/kailas-cloud/docqa/internal/version.Version=v0.3.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the metadata for `docqactl version` and the server start log.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, shortCommit(Commit), Date)
}

// UserAgent returns "<product>/<version>".
func UserAgent(product string) string {
	return product + "/" + Version
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
