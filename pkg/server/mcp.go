package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	mcpServerName    = "research-agent-mcp"
	mcpServerVersion = "1.0.0"
)

type extractGraphOutput struct {
	Graph any `json:"graph"`
}

// NewMCPServer registers the index and graph tools on a new MCP server.
func NewMCPServer(t *Toolset) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: mcpServerVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_evidence",
		Description: "Semantic search over the evidence gathered by research runs.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args SearchEvidenceArgs) (*mcp.CallToolResult, SearchEvidenceResp, error) {
		resp, err := t.SearchEvidence(ctx, args)
		return nil, resp, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_content_by_source",
		Description: "Find all indexed content associated with a specific source URL or file.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args FindSourceArgs) (*mcp.CallToolResult, FindSourceResp, error) {
		resp, err := t.FindContentBySource(ctx, args)
		return nil, resp, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_content_by_metadata",
		Description: "Find indexed content using logical filters on chunk metadata.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args FindMetadataArgs) (*mcp.CallToolResult, FindMetadataResp, error) {
		resp, err := t.FindContentByMetadata(ctx, args)
		return nil, resp, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_graph",
		Description: "Extract a knowledge graph of entities and relations from a research report.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ExtractGraphArgs) (*mcp.CallToolResult, extractGraphOutput, error) {
		return nil, extractGraphOutput{Graph: t.ExtractGraph(ctx, args)}, nil
	})

	return server
}

// NewMCPHandler serves the tools over the streamable HTTP transport.
func NewMCPHandler(t *Toolset) http.Handler {
	server := NewMCPServer(t)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}
