// Package inmemory provides the default linear-scan vector driver.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/reposcope/pkg/vector"
)

type entry struct {
	doc vector.Document

	// seq is the insertion sequence, used to keep ties in insertion order.
	seq uint64
}

// Driver implements vector.Driver with a map scanned in full on every query.
// Its contents do not survive a process restart.
type Driver struct {
	// mu guards docs and next. Queries take the read lock, so they run
	// concurrently with each other and block only while a write is applied.
	mu   sync.RWMutex
	docs map[string]entry
	next uint64
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]entry),
	}
}

// Insert stores docs. Re-inserting an existing ID replaces the document but
// keeps its original position in the tie-break order.
func (d *Driver) Insert(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		doc.Embedding = slices.Clone(doc.Embedding)

		if existing, ok := d.docs[doc.ID]; ok {
			d.docs[doc.ID] = entry{doc: doc, seq: existing.seq}
			continue
		}

		d.docs[doc.ID] = entry{doc: doc, seq: d.next}
		d.next++
	}

	return nil
}

// Query scores every document under prefix against embedding.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int, prefix string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	type scored struct {
		result vector.QueryResult
		seq    uint64
	}

	d.mu.RLock()
	candidates := make([]scored, 0, len(d.docs))
	for id, e := range d.docs {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		candidates = append(candidates, scored{
			result: vector.QueryResult{
				Document: e.doc,
				Score:    vector.Similarity(embedding, e.doc.Embedding),
			},
			seq: e.seq,
		})
	}
	d.mu.RUnlock()

	// Map iteration is random, so restore insertion order before the stable sort.
	slices.SortFunc(candidates, func(a, b scored) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.result.Score > b.result.Score:
			return -1
		case a.result.Score < b.result.Score:
			return 1
		}
		return 0
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]vector.QueryResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results, nil
}

// DeleteByPrefix removes every document whose ID starts with prefix.
func (d *Driver) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id := range d.docs {
		if strings.HasPrefix(id, prefix) {
			delete(d.docs, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored documents.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
