// Package main provides trendctl, the trendpush command line.
package main

import (
	"os"

	"github.com/trendpush/trendpush/internal/cli"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
