package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/nishad/ptmdb/internal/cli"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	root := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		os.Exit(1)
	}
}
