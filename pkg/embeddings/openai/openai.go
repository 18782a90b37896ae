// Package openai implements pkg/embeddings's Embedder on top of langchaingo's
// OpenAI client.
package openai

import (
	"context"
	"fmt"
	"os"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

// DefaultEmbeddingModel is the default OpenAI embedding model.
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// BaseURL overrides the API endpoint, for OpenAI compatible servers.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// APIKey defaults to the OPENAI_API_KEY environment variable.
	APIKey string
}

// Embedder wraps a langchaingo embedder.
type Embedder struct {
	impl lcembeddings.Embedder
}

// NewEmbedder creates an OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key (set OPENAI_API_KEY)")
	}

	opts := []lcopenai.Option{
		lcopenai.WithEmbeddingModel(model),
		lcopenai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}

	client, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	impl, err := lcembeddings.NewEmbedder(client, lcembeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("creating openai embedder: %w", err)
	}

	return &Embedder{impl: impl}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", vector.ErrEmbedding, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}
	return v, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
