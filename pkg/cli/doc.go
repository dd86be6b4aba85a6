// Package cli provides output helpers shared by the tenaai commands.
//
// This package includes:
//   - Output formatting (YAML, JSON, raw) with optional jq filtering
//   - Styled rendering of answers and retrieval hits for terminals
//   - Small human-readable formatters
//
// Example usage:
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    JQ:     ".hits[].score",
//	})
package cli
