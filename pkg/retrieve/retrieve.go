// Package retrieve turns a question into a short, ranked list of source
// snippets for one repository.
package retrieve

import (
	"context"
	"errors"

	"github.com/papercomputeco/reposcope/pkg/index"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

// DefaultTopK is the number of snippets returned per question.
const DefaultTopK = 3

// Snippet is one piece of model context.
type Snippet struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Searcher is the part of the embedding index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, scopePrefix string) ([]vector.QueryResult, error)
}

// Retriever selects the chunks most similar to a question.
type Retriever struct {
	searcher Searcher
	topK     int
}

// New creates a Retriever. A non-positive topK uses DefaultTopK.
func New(searcher Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{searcher: searcher, topK: topK}
}

// TopK returns the configured result limit.
func (r *Retriever) TopK() int {
	return r.topK
}

// GetRelevantContext returns at most TopK snippets from repositoryID ordered
// by descending similarity. A repository with fewer indexed chunks yields
// fewer snippets, down to none.
func (r *Retriever) GetRelevantContext(ctx context.Context, question, repositoryID string) ([]Snippet, error) {
	results, err := r.Search(ctx, question, index.RepositoryPrefix(repositoryID))
	if err != nil {
		return nil, err
	}

	snippets := make([]Snippet, 0, len(results))
	for _, res := range results {
		snippets = append(snippets, Snippet{
			Path:    res.Metadata.Path,
			Content: res.Content,
		})
	}
	return snippets, nil
}

// Search returns the raw top results under scopePrefix, keeping scores and
// line ranges.
func (r *Retriever) Search(ctx context.Context, question, scopePrefix string) ([]vector.QueryResult, error) {
	results, err := r.searcher.Search(ctx, question, r.topK, scopePrefix)
	if err != nil {
		return nil, err
	}
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	return results, nil
}

// IsEmbeddingFailure reports whether err came from the embedder rather than
// the index backend.
func IsEmbeddingFailure(err error) bool {
	return errors.Is(err, vector.ErrEmbedding)
}
