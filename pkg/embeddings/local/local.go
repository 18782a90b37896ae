// Package local implements an offline Embedder that hashes word tokens into a
// fixed size vector. It needs no model server, so it backs the "offline"
// preset and deterministic tests.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/papercomputeco/reposcope/pkg/embeddings"
)

// DefaultDimensions is the vector size when none is configured.
const DefaultDimensions = 256

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embedder maps each lowercase word token of the input to a signed bucket
// chosen by its sha256 digest and sums the buckets. Identical texts produce
// identical vectors, and texts sharing words have positive cosine similarity.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a local embedder producing vectors of the given size.
func NewEmbedder(dimensions uint) *Embedder {
	d := int(dimensions)
	if d <= 0 {
		d = DefaultDimensions
	}
	return &Embedder{dimensions: d}
}

// Embed converts text into a vector embedding. Text without any word tokens
// embeds to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dimensions)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(e.dimensions)
		if sum[8]&1 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	return v, nil
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
