// Package client talks to a running reposcope API server. It backs the
// repo, search and ask CLI commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apisearch "github.com/papercomputeco/reposcope/api/search"
	"github.com/papercomputeco/reposcope/pkg/sse"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/stream"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the reposcope API.
type Client struct {
	target *url.URL
	http   *http.Client

	// streamHTTP has no timeout; answer streams end on their own terminal event.
	streamHTTP *http.Client
}

// New creates a Client for the API server at target.
func New(target string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		target:     u,
		http:       &http.Client{Timeout: DefaultTimeout},
		streamHTTP: &http.Client{},
	}, nil
}

// RepositoryDetail is the body of GET /api/repositories/:id.
type RepositoryDetail struct {
	Repository *storage.Repository `json:"repository"`
	Files      []*storage.File     `json:"files"`
	Commits    []*storage.Commit   `json:"commits"`
}

// CreateRepository registers a repository by GitHub URL or local path.
// Exactly one of repoURL and path should be set.
func (c *Client) CreateRepository(ctx context.Context, repoURL, path string) (*storage.Repository, error) {
	body := map[string]string{}
	if repoURL != "" {
		body["url"] = repoURL
	}
	if path != "" {
		body["path"] = path
	}

	var out struct {
		Repository *storage.Repository `json:"repository"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/repositories", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Repository, nil
}

// ListRepositories lists every registered repository, newest first.
func (c *Client) ListRepositories(ctx context.Context) ([]*storage.Repository, error) {
	var out struct {
		Repositories []*storage.Repository `json:"repositories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/repositories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Repositories, nil
}

// GetRepository returns a repository with its files and recent commits.
func (c *Client) GetRepository(ctx context.Context, id string) (*RepositoryDetail, error) {
	var out RepositoryDetail
	if err := c.do(ctx, http.MethodGet, "/api/repositories/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRepository removes a repository and its indexed content.
func (c *Client) DeleteRepository(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/repositories/"+url.PathEscape(id), nil, nil, nil)
}

// Reingest queues a fresh ingestion of a repository.
func (c *Client) Reingest(ctx context.Context, id string) (*storage.Repository, error) {
	var out struct {
		Repository *storage.Repository `json:"repository"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/repositories/"+url.PathEscape(id)+"/reingest", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Repository, nil
}

// Query asks a question and waits for the whole answer. The query is
// recorded in the repository's history.
func (c *Client) Query(ctx context.Context, repositoryID, question string) (*storage.Query, error) {
	var out struct {
		Query *storage.Query `json:"query"`
	}
	body := map[string]string{"question": question}
	if err := c.do(ctx, http.MethodPost, "/api/repositories/"+url.PathEscape(repositoryID)+"/query", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Query, nil
}

// Search runs a semantic search, scoped to repositoryID when it is set.
func (c *Client) Search(ctx context.Context, query, repositoryID string, topK int) (*apisearch.SearchOutput, error) {
	q := url.Values{}
	q.Set("q", query)
	if repositoryID != "" {
		q.Set("repository_id", repositoryID)
	}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}

	var out apisearch.SearchOutput
	if err := c.do(ctx, http.MethodGet, "/api/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamQuery asks a question and calls onEvent for every event of the
// answer stream, stopping after the terminal event. An error event from the
// server is delivered to onEvent, not returned.
func (c *Client) StreamQuery(ctx context.Context, repositoryID, question string, onEvent func(stream.Event) error) error {
	q := url.Values{}
	q.Set("q", question)

	req, err := c.newRequest(ctx, http.MethodGet, "/api/repositories/"+url.PathEscape(repositoryID)+"/query/stream", q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to reposcope API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	reader := sse.NewReader(resp.Body)
	for {
		raw, err := reader.Next()
		if err != nil {
			return fmt.Errorf("reading answer stream: %w", err)
		}
		if raw == nil {
			return errors.New("answer stream ended without a terminal event")
		}

		ev, err := decodeEvent(raw)
		if err != nil {
			return err
		}
		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Terminal() {
			return nil
		}
	}
}

func decodeEvent(raw *sse.Event) (stream.Event, error) {
	switch stream.EventType(raw.Type) {
	case stream.EventToken:
		var p stream.TokenPayload
		if err := raw.DecodeJSON(&p); err != nil {
			return stream.Event{}, err
		}
		return stream.Token(p.Chunk), nil
	case stream.EventDone:
		var p stream.DonePayload
		if err := raw.DecodeJSON(&p); err != nil {
			return stream.Event{}, err
		}
		return stream.Done(p.Sources, p.Confidence), nil
	case stream.EventError:
		var p stream.ErrorPayload
		if err := raw.DecodeJSON(&p); err != nil {
			return stream.Event{}, err
		}
		return stream.Error(p.Error), nil
	default:
		return stream.Event{}, fmt.Errorf("unexpected event type %q", raw.Type)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.target
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to reposcope API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
