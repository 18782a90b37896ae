// Package retry wraps an Embedder with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
)

// DefaultBaseDelay is the first backoff interval.
const DefaultBaseDelay = 200 * time.Millisecond

// Embedder retries failed Embed calls on the inner Embedder. Context
// cancellation and deadline errors are returned immediately.
type Embedder struct {
	inner     embeddings.Embedder
	retries   uint64
	baseDelay time.Duration
}

// New wraps inner, retrying up to retries times after the first attempt.
func New(inner embeddings.Embedder, retries uint64, baseDelay time.Duration) *Embedder {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Embedder{inner: inner, retries: retries, baseDelay: baseDelay}
}

// Embed calls the inner embedder until it succeeds or retries run out.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32

	backoff := goretry.WithMaxRetries(e.retries, goretry.NewExponential(e.baseDelay))
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := e.inner.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return goretry.RetryableError(err)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Close closes the inner embedder.
func (e *Embedder) Close() error {
	return e.inner.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
