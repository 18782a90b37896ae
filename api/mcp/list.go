package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/reposcope/pkg/storage"
)

var (
	listToolName    = "list_repositories"
	listDescription = "List the repositories reposcope knows about with their ids and ingestion status. Use an id from here with search_repository and ask_repository; only ready repositories can be asked about."
)

// ListInput filters the listing.
type ListInput struct {
	Status string `json:"status,omitempty" jsonschema:"only list repositories with this status, e.g. ready"`
}

// RepositorySummary is one listed repository.
type RepositorySummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	Language  string `json:"language,omitempty"`
	FileCount int    `json:"file_count"`
}

type ListOutput struct {
	Repositories []RepositorySummary `json:"repositories"`
	Count        int                 `json:"count"`
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	repos, err := s.config.Lister.ListRepositories(ctx)
	if err != nil {
		s.config.Logger.Warn("MCP list failed", "error", err)
		return toolError(fmt.Sprintf("List failed: %v", err)), ListOutput{}, nil
	}

	out := ListOutput{Repositories: []RepositorySummary{}}
	for _, r := range repos {
		if input.Status != "" && string(r.Status) != input.Status {
			continue
		}
		out.Repositories = append(out.Repositories, summarize(r))
	}
	out.Count = len(out.Repositories)

	data, err := json.Marshal(out)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize repositories: %v", err)), ListOutput{}, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, out, nil
}

func summarize(r *storage.Repository) RepositorySummary {
	return RepositorySummary{
		ID:        r.ID,
		FullName:  r.FullName,
		Source:    string(r.Source),
		Status:    string(r.Status),
		Language:  r.Language,
		FileCount: r.FileCount,
	}
}
