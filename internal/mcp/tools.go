package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/elephant/internal/knowledge"
)

// Tool names exposed over MCP.
const (
	ToolSearchKnowledge  = "search_knowledge"
	ToolRelatedKnowledge = "related_knowledge"
	ToolSuggestKnowledge = "suggest_knowledge"
	ToolGetContext       = "get_context"
)

const (
	defaultSearchLimit  = 10
	defaultSuggestLimit = 5
	defaultTokenBudget  = 4000
)

// SearchKnowledgeInput is the input schema for search_knowledge.
type SearchKnowledgeInput struct {
	Query       string   `json:"query" jsonschema:"The search query"`
	Context     []string `json:"context,omitempty" jsonschema:"Recent conversation messages used to nudge ranking, oldest first"`
	Personality string   `json:"personality,omitempty" jsonschema:"Personality id controlling ranking preferences (empty = default)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum results to return (default 10)"`
}

// RelatedKnowledgeInput is the input schema for related_knowledge.
type RelatedKnowledgeInput struct {
	EntryID string `json:"entry_id" jsonschema:"UUID of the knowledge entry to find neighbors of"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default 5)"`
}

// SuggestKnowledgeInput is the input schema for suggest_knowledge.
type SuggestKnowledgeInput struct {
	Context     []string `json:"context" jsonschema:"Recent conversation messages, oldest first"`
	Personality string   `json:"personality,omitempty" jsonschema:"Personality id (empty = default)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum suggestions to return (default 5)"`
}

// GetContextInput is the input schema for get_context.
type GetContextInput struct {
	ThreadID    string `json:"thread_id" jsonschema:"UUID of the conversation thread"`
	TokenBudget int    `json:"token_budget,omitempty" jsonschema:"Token budget for the assembled context (default 4000)"`
}

func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[SearchKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolSearchKnowledge, err)
	}
	mcpSdk.AddTool(s.mcpServer, &mcpSdk.Tool{
		Name: ToolSearchKnowledge,
		Description: "Search the personal knowledge corpus with full-text ranking. " +
			"Optional conversation context nudges results toward the current topic.",
		InputSchema: searchSchema,
	}, s.searchKnowledge)

	relatedSchema, err := jsonschema.For[RelatedKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolRelatedKnowledge, err)
	}
	mcpSdk.AddTool(s.mcpServer, &mcpSdk.Tool{
		Name: ToolRelatedKnowledge,
		Description: "Find knowledge entries adjacent to a given entry: same content type " +
			"plus a shared project or overlapping topics.",
		InputSchema: relatedSchema,
	}, s.relatedKnowledge)

	suggestSchema, err := jsonschema.For[SuggestKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolSuggestKnowledge, err)
	}
	mcpSdk.AddTool(s.mcpServer, &mcpSdk.Tool{
		Name: ToolSuggestKnowledge,
		Description: "Proactively surface substantial knowledge entries relevant to the " +
			"current conversation, without an explicit query.",
		InputSchema: suggestSchema,
	}, s.suggestKnowledge)

	contextSchema, err := jsonschema.For[GetContextInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolGetContext, err)
	}
	mcpSdk.AddTool(s.mcpServer, &mcpSdk.Tool{
		Name: ToolGetContext,
		Description: "Assemble the most recent messages of a conversation thread that fit " +
			"within a token budget, in chronological order.",
		InputSchema: contextSchema,
	}, s.getContext)

	return nil
}

func (s *Server) searchKnowledge(ctx context.Context, _ *mcpSdk.CallToolRequest, in SearchKnowledgeInput) (*mcpSdk.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.knowledge.Search(ctx, knowledge.SearchRequest{
		Query:       in.Query,
		Context:     in.Context,
		Personality: in.Personality,
		Limit:       limit,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) relatedKnowledge(ctx context.Context, _ *mcpSdk.CallToolRequest, in RelatedKnowledgeInput) (*mcpSdk.CallToolResult, any, error) {
	entryID, err := uuid.Parse(in.EntryID)
	if err != nil {
		return errorResult(fmt.Errorf("invalid entry_id: %w", err)), nil, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}

	results, err := s.knowledge.Related(ctx, entryID, limit)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) suggestKnowledge(ctx context.Context, _ *mcpSdk.CallToolRequest, in SuggestKnowledgeInput) (*mcpSdk.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}

	results, err := s.knowledge.SuggestForContext(ctx, in.Context, in.Personality, limit)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) getContext(ctx context.Context, _ *mcpSdk.CallToolRequest, in GetContextInput) (*mcpSdk.CallToolResult, any, error) {
	threadID, err := uuid.Parse(in.ThreadID)
	if err != nil {
		return errorResult(fmt.Errorf("invalid thread_id: %w", err)), nil, nil
	}
	budget := in.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	messages, stats, err := s.assembler.Assemble(ctx, threadID, budget)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{"messages": messages, "stats": stats})
}

// jsonResult marshals data as a single text content block. MCP text is
// the lowest common denominator every client renders.
func jsonResult(data any) (*mcpSdk.CallToolResult, any, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcpSdk.CallToolResult{
		Content: []mcpSdk.Content{&mcpSdk.TextContent{Text: string(payload)}},
	}, nil, nil
}

// errorResult reports a domain error to the model as a tool error rather
// than a protocol failure, so the model can correct its input and retry.
func errorResult(err error) *mcpSdk.CallToolResult {
	return &mcpSdk.CallToolResult{
		Content: []mcpSdk.Content{&mcpSdk.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
