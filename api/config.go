// Package api provides the HTTP API server for managing repositories and
// asking questions about them.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/reposcope/api/search"
	"github.com/papercomputeco/reposcope/pkg/ask"
	"github.com/papercomputeco/reposcope/pkg/meeting"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/ratelimit"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// Index is the part of the embedding index the API touches directly.
type Index interface {
	search.Searcher
	ClearRepository(ctx context.Context, repositoryID string) (int, error)
}

// Queue schedules background ingestion.
type Queue interface {
	Enqueue(repositoryID string) error

	// Stop cancels the repository's ingestion and waits for a running job
	// to return.
	Stop(ctx context.Context, repositoryID string) (bool, error)
}

// Watcher follows local repositories for changes.
type Watcher interface {
	Watch(repositoryID, root string) error
	Unwatch(repositoryID string)
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	Storage    storage.Driver
	Index      Index
	Fetcher    source.Fetcher
	Queue      Queue
	Ask        *ask.Service
	Meetings   *meeting.Service
	Summarizer synth.Summarizer

	// Watcher is optional; when set, local repositories are watched.
	Watcher Watcher

	// RateLimiter is optional; when nil requests are not limited.
	RateLimiter *ratelimit.Registry

	// Metrics is optional; when set it is exposed at /metrics.
	Metrics *metrics.Registry

	// MCP is optional; when set it is mounted at /mcp.
	MCP http.Handler

	Logger *slog.Logger
}
