// Package main is the entry point for the tenaai CLI.
//
// Usage:
//
//	tenaai [flags] <command> [subcommand] [args]
//
// Commands:
//
//	build      - Embed chunk files and persist the index snapshot
//	ask        - Answer a question from the indexed guidelines
//	search     - Show the nearest chunks without calling the LLM
//	status     - Show the persisted snapshot
//	serve      - Serve the HTTP API
//	config     - Configuration management (contexts, engine settings)
//	cache      - Embedding cache maintenance
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/kechemale/TenaAI/cmd/tenaai/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
