// Package main is the entry point for the each CLI.
//
// each reads standard input, splits it into tokens, and runs a command
// template once per token. All functionality lives in internal/cli.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release process. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"github.com/shinji-kodama/each/internal/cli"
)

// version, commit, and date are set at build time via ldflags
// and surface through the --version flag.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
