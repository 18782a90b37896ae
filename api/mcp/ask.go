package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	askToolName    = "ask_repository"
	askDescription = "Ask a natural language question about an indexed repository. Returns an answer grounded in the most relevant source files, the files used as sources and a confidence between 0 and 1."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	RepositoryID string `json:"repository_id" jsonschema:"the repository id to ask about"`
	Question     string `json:"question" jsonschema:"the question to answer"`
}

// AskOutput is the structured answer.
type AskOutput struct {
	QueryID    string   `json:"query_id"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.RepositoryID) == "" {
		return toolError("repository_id is required"), AskOutput{}, nil
	}

	q, answer, err := s.config.Asker.Ask(ctx, input.RepositoryID, input.Question)
	if err != nil {
		s.config.Logger.Warn("MCP ask failed",
			"repository_id", input.RepositoryID,
			"error", err,
		)
		return toolError(fmt.Sprintf("Ask failed: %v", err)), AskOutput{}, nil
	}

	output := AskOutput{
		QueryID:    q.ID,
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		Sources:    answer.Sources,
	}
	if output.Sources == nil {
		output.Sources = []string{}
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize answer: %v", err)), AskOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
