// Package ollama implements pkg/embeddings's Embedder on top of langchaingo's
// Ollama client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcollama "github.com/tmc/langchaingo/llms/ollama"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	defaultTimeout = 2 * time.Minute
)

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Model is a pulled embedding model such as "nomic-embed-text" or
	// "all-minilm". Defaults to DefaultEmbeddingModel.
	Model string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration
}

// Embedder embeds text with a model served by Ollama.
type Embedder struct {
	model string
	impl  lcembeddings.Embedder
}

// NewEmbedder creates an Ollama embedder. No request is made until Embed.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := lcollama.New(
		lcollama.WithServerURL(baseURL),
		lcollama.WithModel(model),
		lcollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}

	impl, err := lcembeddings.NewEmbedder(client, lcembeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("creating ollama embedder: %w", err)
	}

	return &Embedder{model: model, impl: impl}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama %s: %v", vector.ErrEmbedding, e.model, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: ollama %s returned no embedding", vector.ErrEmbedding, e.model)
	}
	return v, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
