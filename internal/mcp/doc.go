// Package mcp exposes the retrieval core over the Model Context Protocol
// so MCP-capable assistants can search the knowledge corpus and pull
// conversation context as tools.
package mcp
