package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/koopa0/elephant/internal/config"
	"github.com/koopa0/elephant/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout, exposing
knowledge search, suggestions, and conversation context assembly as tools
for MCP-capable assistants.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// runMCP initializes the retrieval core and serves MCP over stdio.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.Logger
	logger.Info("starting MCP server", "version", Version)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:      "elephant",
		Version:   Version,
		Threads:   a.Threads,
		Assembler: a.Assembler,
		Knowledge: a.Engine,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "name", "elephant", "transport", "stdio")

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
