// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing reposcope chunks.
	DefaultCollectionName = "reposcope"

	// prefixKeyPrefix marks the boolean metadata keys that record each
	// "_" boundary prefix of a chunk id.
	prefixKeyPrefix = "p:"

	apiBase = "/api/v2/tenants/default_tenant/databases/default_database/collections"

	maxBatch = 1000
)

// Driver implements vector.Driver using Chroma's REST API.
//
// Chroma cannot filter on id prefixes, so every chunk carries a "p:<prefix>"
// metadata flag for each prefix returned by vector.BoundaryPrefixes and
// prefix scoped operations become metadata equality filters.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// MaxRetries bounds connection attempts while Chroma is starting up.
	// Defaults to 5.
	MaxRetries uint64

	// RetryDelay is the initial backoff between attempts. Defaults to 500ms.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff. Defaults to 5s.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver, retrying the collection
// lookup with exponential backoff until Chroma answers.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	delay := c.RetryDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay == 0 {
		maxDelay = 5 * time.Second
	}

	d := &Driver{
		baseURL:        strings.TrimRight(c.URL, "/"),
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	// WithMaxRetries counts retries after the first attempt.
	backoff := retry.WithCappedDuration(maxDelay, retry.NewExponential(delay))
	backoff = retry.WithMaxRetries(maxRetries-1, backoff)

	attempts := 0
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		attempts++
		id, err := d.getOrCreateCollection(ctx)
		if err != nil {
			logger.Debug("chroma not ready", "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		d.collectionID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q after %d attempts: %w", collectionName, attempts, errors.Join(vector.ErrConnection, err))
	}

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", d.collectionID,
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one
// configured for cosine distance.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection collectionResponse
	status, err := d.do(ctx, http.MethodGet, apiBase+"/"+d.collectionName, nil, &collection)
	if err == nil && status == http.StatusOK {
		return collection.ID, nil
	}

	create := createCollectionRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	}
	if _, err := d.do(ctx, http.MethodPost, apiBase, create, &collection); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return collection.ID, nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses are returned as errors carrying the body.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func (d *Driver) collectionPath(op string) string {
	return apiBase + "/" + d.collectionID + "/" + op
}

// prefixFilter builds the where clause for prefix, nil for the whole collection.
func prefixFilter(prefix string) (map[string]any, error) {
	if prefix == "" {
		return nil, nil
	}
	if !vector.IsBoundaryPrefix(prefix) {
		return nil, fmt.Errorf("chroma prefix %q: %w", prefix, vector.ErrUnsupportedPrefix)
	}
	return map[string]any{
		prefixKeyPrefix + prefix: map[string]any{"$eq": true},
	}, nil
}

// Insert upserts docs in batches of at most maxBatch, the largest request a
// default Chroma server accepts comfortably.
func (d *Driver) Insert(ctx context.Context, docs []vector.Document) error {
	for batch := range slices.Chunk(docs, maxBatch) {
		if _, err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), newUpsertRequest(batch), nil); err != nil {
			return fmt.Errorf("upserting documents: %w", err)
		}
	}

	if len(docs) > 0 {
		d.logger.Debug("added documents to chroma", "count", len(docs))
	}
	return nil
}

// Query finds the topK most similar documents under prefix.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, prefix string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	where, err := prefixFilter(prefix)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           where,
		Include:         []string{"metadatas", "distances", "documents"},
	}

	var queryResp queryResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("query"), req, &queryResp); err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	results := queryResp.results()
	d.logger.Debug("queried chroma",
		"prefix", prefix,
		"results", len(results),
	)

	return results, nil
}

// DeleteByPrefix lists the ids under prefix and deletes them.
func (d *Driver) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	where, err := prefixFilter(prefix)
	if err != nil {
		return 0, err
	}

	var getResp getResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("get"), getRequest{
		Where:   where,
		Include: []string{},
	}, &getResp); err != nil {
		return 0, fmt.Errorf("listing documents: %w", err)
	}

	if len(getResp.IDs) == 0 {
		return 0, nil
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), deleteRequest{
		IDs: getResp.IDs,
	}, nil); err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma",
		"prefix", prefix,
		"count", len(getResp.IDs),
	)

	return len(getResp.IDs), nil
}

func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}
