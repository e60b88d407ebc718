package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/koopa0/elephant/internal/api"
	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Threads   api.ThreadStore
	Assembler api.ContextAssembler
	Knowledge api.KnowledgeEngine
	Logger    *slog.Logger
}

// Server wraps the MCP SDK server around the retrieval core.
type Server struct {
	mcpServer *mcpSdk.Server
	threads   api.ThreadStore
	assembler api.ContextAssembler
	knowledge api.KnowledgeEngine
	logger    *slog.Logger
}

// NewServer creates an MCP server with all retrieval tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Threads == nil || cfg.Assembler == nil || cfg.Knowledge == nil {
		return nil, fmt.Errorf("thread store, assembler, and knowledge engine are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := mcpSdk.NewServer(&mcpSdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		threads:   cfg.Threads,
		assembler: cfg.Assembler,
		knowledge: cfg.Knowledge,
		logger:    logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return s, nil
}

// Run serves MCP on the given transport. Blocking; returns when the
// context is canceled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcpSdk.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
