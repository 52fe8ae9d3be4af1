// Package main is the entry point for the nodekit CLI.
//
// nodekit creates, lists and destroys groups of compute nodes through a
// provider independent API. Prerequisite networks, security groups and key
// pairs are created on demand and cleaned up once no node uses them.
//
// For detailed usage information, run:
//
//	nodekit --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/nodekit/cmd/nodekit/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
