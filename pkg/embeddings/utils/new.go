// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"time"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
	"github.com/papercomputeco/reposcope/pkg/embeddings/cache"
	"github.com/papercomputeco/reposcope/pkg/embeddings/local"
	"github.com/papercomputeco/reposcope/pkg/embeddings/ollama"
	"github.com/papercomputeco/reposcope/pkg/embeddings/openai"
	"github.com/papercomputeco/reposcope/pkg/embeddings/retry"
)

type NewEmbedderOpts struct {
	// ProviderType is one of "local", "ollama", "openai".
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint

	// Timeout bounds one HTTP round trip for remote providers.
	Timeout time.Duration

	// Retries wraps remote providers with exponential backoff when > 0.
	Retries uint

	// CacheSize wraps the provider with an LRU cache when > 0.
	CacheSize uint
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "local":
		e = local.NewEmbedder(o.Dimensions)
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case "openai":
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.Retries > 0 && o.ProviderType != "local" {
		e = retry.New(e, uint64(o.Retries), retry.DefaultBaseDelay)
	}

	if o.CacheSize > 0 {
		e, err = cache.New(e, int(o.CacheSize))
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}
