// Package vector provides interfaces and implementations for vector storage and
// similarity search over embedded chunks.
package vector

import "context"

// Metadata locates a chunk inside its source document.
type Metadata struct {
	// Path is the document path the chunk was cut from (e.g. "auth.py").
	Path string `json:"path"`

	// Language is the detected source language, empty when unknown.
	Language string `json:"language,omitempty"`

	// StartLine and EndLine are 1-based and inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Document is one stored chunk with its embedding.
type Document struct {
	// ID is unique within the index and prefixed by the owning document id,
	// e.g. "repo1_auth.py_chunk_0".
	ID string

	// Content is the chunk text.
	Content string

	Metadata Metadata

	// Embedding is the vector representation of Content. It is never mutated
	// after insertion.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity in [-1, 1] (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Insert stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should replace
	// it.
	Insert(ctx context.Context, docs []Document) error

	// Query returns the topK documents whose ID starts with prefix, ordered by
	// descending similarity to embedding. An empty prefix searches every document.
	// Ties keep insertion order.
	Query(ctx context.Context, embedding []float32, topK int, prefix string) ([]QueryResult, error)

	// DeleteByPrefix removes every document whose ID starts with prefix and
	// reports how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
