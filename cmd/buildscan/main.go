// Package main is the entry point for buildscan.
package main

import (
	"os"

	"github.com/dshills/buildscan/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = date

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
