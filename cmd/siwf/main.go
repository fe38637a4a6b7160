// Package main is the entry point for the siwf CLI.
package main

import (
	"os"

	"github.com/mrz1836/siwf/internal/cli"
)

// Set at link time with -ldflags "-X main.version=...".
//
//nolint:gochecknoglobals // Build metadata
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
