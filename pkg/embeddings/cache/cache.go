// Package cache wraps an Embedder with a bounded LRU keyed by the text digest.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
)

// Embedder caches the vectors returned by an inner Embedder. Failures are
// never cached.
type Embedder struct {
	inner embeddings.Embedder
	cache *lru.Cache[string, []float32]
}

// New wraps inner with a cache holding up to size vectors.
func New(inner embeddings.Embedder, size int) (*Embedder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache size must be greater than zero")
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: c}, nil
}

func key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or computes and stores it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k := key(text)
	if v, ok := e.cache.Get(k); ok {
		return slices.Clone(v), nil
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Add(k, slices.Clone(v))
	return v, nil
}

// Len returns the number of cached vectors.
func (e *Embedder) Len() int {
	return e.cache.Len()
}

// Close closes the inner embedder.
func (e *Embedder) Close() error {
	return e.inner.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
