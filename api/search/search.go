// Package search provides shared search types and logic for semantic search
// over indexed repository chunks. It is used by both the REST API endpoint
// and the MCP server tool.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/reposcope/pkg/index"
	"github.com/papercomputeco/reposcope/pkg/utils"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	// DefaultTopK is used when the caller does not ask for a result count.
	DefaultTopK = 3

	// MaxTopK caps the requested result count.
	MaxTopK = 20

	previewLength = 240
)

// ErrQueryRequired is returned for a blank query.
var ErrQueryRequired = errors.New("query is required")

// Searcher is the embedding index lookup used by Search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, scopePrefix string) ([]vector.QueryResult, error)
}

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query        string `json:"query"`
	RepositoryID string `json:"repository_id,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
}

// SearchResult represents a single matching chunk.
type SearchResult struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	Language  string  `json:"language,omitempty"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float32 `json:"score"`
	Preview   string  `json:"preview"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query        string         `json:"query"`
	RepositoryID string         `json:"repository_id,omitempty"`
	Results      []SearchResult `json:"results"`
	Count        int            `json:"count"`
}

// Search embeds the query and returns the most similar chunks. With a
// repository id the search is scoped to that repository, otherwise every
// indexed document (repositories and meetings) is considered.
func Search(ctx context.Context, in SearchInput, searcher Searcher, logger *slog.Logger) (*SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, ErrQueryRequired
	}

	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	prefix := ""
	if in.RepositoryID != "" {
		prefix = index.RepositoryPrefix(in.RepositoryID)
	}

	logger.Debug("search request",
		"query", in.Query,
		"repository_id", in.RepositoryID,
		"top_k", topK,
	)

	results, err := searcher.Search(ctx, in.Query, topK, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, BuildSearchResult(r))
	}

	return &SearchOutput{
		Query:        in.Query,
		RepositoryID: in.RepositoryID,
		Results:      out,
		Count:        len(out),
	}, nil
}

// BuildSearchResult converts a vector query result into a SearchResult.
func BuildSearchResult(result vector.QueryResult) SearchResult {
	return SearchResult{
		ID:        result.ID,
		Path:      result.Metadata.Path,
		Language:  result.Metadata.Language,
		StartLine: result.Metadata.StartLine,
		EndLine:   result.Metadata.EndLine,
		Score:     result.Score,
		Preview:   utils.Truncate(strings.TrimSpace(result.Content), previewLength),
	}
}
