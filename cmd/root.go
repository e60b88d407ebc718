// Package cmd implements the elephant command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "elephant",
	Short: "Digital Elephant — context and knowledge retrieval core",
	Long: `Elephant is the context and knowledge retrieval core of a personal
assistant backend. It stores conversation threads, assembles token-bounded
context windows, and ranks a personal knowledge corpus with full-text
search and personality-aware scoring.

Run "elephant serve" for the HTTP API or "elephant mcp" for the MCP
stdio server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
