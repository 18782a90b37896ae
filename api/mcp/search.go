package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/reposcope/api/search"
)

var (
	searchToolName    = "search_repository"
	searchDescription = "Semantic search over indexed repository source code and meeting transcripts. Returns the most similar chunks with their file path, line range and similarity score."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query text"`
	RepositoryID string `json:"repository_id,omitempty" jsonschema:"restrict the search to one repository id"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 3, max: 20)"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.SearchOutput, error) {
	logger := s.config.Logger

	output, err := search.Search(ctx, search.SearchInput{
		Query:        input.Query,
		RepositoryID: input.RepositoryID,
		TopK:         input.TopK,
	}, s.config.Searcher, logger)
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return toolError(fmt.Sprintf("Search failed: %v", err)), search.SearchOutput{}, nil
	}

	// Tools returning structured content also return the serialized JSON
	// in a TextContent block for older clients.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), search.SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, *output, nil
}
