// Package index is the embedding index: it chunks documents, embeds each
// chunk and answers similarity queries through a vector.Driver.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/reposcope/pkg/chunk"
	"github.com/papercomputeco/reposcope/pkg/embeddings"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 30 * time.Second

// Config holds the collaborators of an Index.
type Config struct {
	Driver   vector.Driver
	Embedder embeddings.Embedder

	// ChunkSize is the chunker's soft maximum. Defaults to chunk.DefaultMaxLength.
	ChunkSize int

	// EmbedTimeout bounds each embedding call. Defaults to DefaultEmbedTimeout.
	EmbedTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Index owns the mapping from chunk id to content, metadata and vector.
type Index struct {
	driver       vector.Driver
	embedder     embeddings.Embedder
	chunkSize    int
	embedTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Registry
}

// New creates an Index.
func New(c Config) (*Index, error) {
	if c.Driver == nil {
		return nil, errors.New("index requires a vector driver")
	}
	if c.Embedder == nil {
		return nil, errors.New("index requires an embedder")
	}

	chunkSize := c.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultMaxLength
	}
	timeout := c.EmbedTimeout
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = reslog.Nop()
	}

	return &Index{
		driver:       c.Driver,
		embedder:     c.Embedder,
		chunkSize:    chunkSize,
		embedTimeout: timeout,
		logger:       logger,
		metrics:      c.Metrics,
	}, nil
}

// ChunkID returns the id of the i-th chunk of a document.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, i)
}

// RepositoryPrefix returns the id prefix shared by every chunk of a repository.
func RepositoryPrefix(repositoryID string) string {
	return repositoryID + "_"
}

// DocumentID returns the document id of a repository file.
func DocumentID(repositoryID, path string) string {
	return RepositoryPrefix(repositoryID) + path
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, x.embedTimeout)
	defer cancel()

	v, err := x.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, vector.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}
	return v, nil
}

// AddDocument chunks content, embeds every chunk and stores each one as
// "{documentID}_chunk_{i}". A chunk whose embedding fails is skipped and the
// chunks already stored stay in place. The returned count is the number of
// chunks stored; the error joins every chunk failure and wraps
// vector.ErrEmbedding when any embedding failed.
func (x *Index) AddDocument(ctx context.Context, documentID, content string, meta vector.Metadata) (int, error) {
	chunks := chunk.Split(content, x.chunkSize)

	var (
		stored int
		errs   []error
	)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		id := ChunkID(documentID, i)

		emb, err := x.embed(ctx, c.Content)
		if err != nil {
			x.metrics.EmbeddingFailed("ingest")
			x.logger.Warn("skipping chunk",
				"chunk_id", id,
				"path", meta.Path,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("chunk %s: %w", id, err))
			continue
		}

		m := meta
		m.StartLine = c.StartLine
		m.EndLine = c.EndLine

		if err := x.driver.Insert(ctx, []vector.Document{{
			ID:        id,
			Content:   c.Content,
			Metadata:  m,
			Embedding: emb,
		}}); err != nil {
			errs = append(errs, fmt.Errorf("storing chunk %s: %w", id, err))
			continue
		}
		stored++
	}

	x.metrics.ChunksIndexed(stored)

	x.logger.Debug("indexed document",
		"document_id", documentID,
		"chunks", len(chunks),
		"stored", stored,
	)

	return stored, errors.Join(errs...)
}

// Search embeds query and returns up to limit results under scopePrefix,
// ordered by descending cosine similarity. An empty prefix searches the whole
// index. Embedding failures wrap vector.ErrEmbedding.
func (x *Index) Search(ctx context.Context, query string, limit int, scopePrefix string) ([]vector.QueryResult, error) {
	emb, err := x.embed(ctx, query)
	if err != nil {
		x.metrics.EmbeddingFailed("query")
		return nil, err
	}

	results, err := x.driver.Query(ctx, emb, limit, scopePrefix)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return results, nil
}

// Clear deletes every chunk whose id starts with prefix.
func (x *Index) Clear(ctx context.Context, prefix string) (int, error) {
	n, err := x.driver.DeleteByPrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("clearing %q: %w", prefix, err)
	}
	return n, nil
}

// ClearRepository deletes every chunk belonging to repositoryID.
func (x *Index) ClearRepository(ctx context.Context, repositoryID string) (int, error) {
	return x.Clear(ctx, RepositoryPrefix(repositoryID))
}

// ClearDocument deletes every chunk of one document.
func (x *Index) ClearDocument(ctx context.Context, documentID string) (int, error) {
	return x.Clear(ctx, documentID+"_chunk_")
}
