// Package github fetches repository snapshots and commit history from the
// GitHub REST API.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/source"
)

const (
	// DefaultTimeout is the HTTP timeout for a single API call.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps a full ingestion under the authenticated
	// 5000 requests per hour quota.
	DefaultRequestsPerSecond = 1.2

	// blobConcurrency bounds parallel blob downloads.
	blobConcurrency = 4
)

// Config configures a Fetcher.
type Config struct {
	Token string

	// BaseURL overrides the API root, for GitHub Enterprise or tests.
	BaseURL string

	// RequestsPerSecond throttles every API call. Zero means the default,
	// negative disables throttling.
	RequestsPerSecond float64

	Filter source.Filter
	Logger *slog.Logger

	// HTTPClient is used as the transport when Token is empty.
	HTTPClient *http.Client
}

// Fetcher implements source.Fetcher for GitHub.
type Fetcher struct {
	client  *gh.Client
	limiter *rate.Limiter
	filter  source.Filter
	logger  *slog.Logger
}

// New creates a GitHub fetcher.
func New(cfg Config) (*Fetcher, error) {
	httpClient := cfg.HTTPClient
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		ctx := context.Background()
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		httpClient = oauth2.NewClient(ctx, ts)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = DefaultTimeout
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing github base url: %w", err)
		}
		client.BaseURL = u
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = DefaultRequestsPerSecond
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = reslog.Nop()
	}

	return &Fetcher{
		client:  client,
		limiter: limiter,
		filter:  cfg.Filter,
		logger:  logger,
	}, nil
}

func (f *Fetcher) wait(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Info fetches repository metadata.
func (f *Fetcher) Info(ctx context.Context, ref source.Ref) (*source.Info, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	repo, _, err := f.client.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, wrapError(err, "get repository")
	}

	return &source.Info{
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Owner:         repo.GetOwner().GetLogin(),
		Description:   repo.GetDescription(),
		Language:      repo.GetLanguage(),
		URL:           repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
	}, nil
}

// Files walks the default branch tree and downloads every allowed blob.
// Blobs that fail to download are logged and skipped.
func (f *Fetcher) Files(ctx context.Context, ref source.Ref) ([]source.File, error) {
	info, err := f.Info(ctx, ref)
	if err != nil {
		return nil, err
	}
	branch := info.DefaultBranch
	if branch == "" {
		branch = "HEAD"
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	tree, _, err := f.client.Git.GetTree(ctx, ref.Owner, ref.Name, branch, true)
	if err != nil {
		return nil, wrapError(err, "get tree")
	}
	if tree.GetTruncated() {
		f.logger.Warn("github tree truncated, indexing partial snapshot", "repository", ref.FullName())
	}

	entries := make([]*gh.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if !f.filter.Allow(entry.GetPath(), int64(entry.GetSize())) {
			continue
		}
		entries = append(entries, entry)
	}

	results := make([]*source.File, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobConcurrency)
	for i, entry := range entries {
		g.Go(func() error {
			content, err := f.blob(gctx, ref, entry.GetSHA())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.logger.Warn("skipping file",
					"repository", ref.FullName(),
					"path", entry.GetPath(),
					"error", err,
				)
				return nil
			}
			results[i] = &source.File{
				Path:     entry.GetPath(),
				Content:  content,
				Language: source.Language(entry.GetPath()),
				Size:     int64(entry.GetSize()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]source.File, 0, len(results))
	for _, r := range results {
		if r != nil {
			files = append(files, *r)
		}
	}
	return files, nil
}

func (f *Fetcher) blob(ctx context.Context, ref source.Ref, sha string) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	blob, _, err := f.client.Git.GetBlob(ctx, ref.Owner, ref.Name, sha)
	if err != nil {
		return "", wrapError(err, "get blob")
	}

	if blob.GetEncoding() != "base64" {
		return blob.GetContent(), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.GetContent(), "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decoding blob %s: %w", sha, err)
	}
	return string(decoded), nil
}

// Commits lists up to limit recent commits and looks up stats for each.
// A commit whose stats cannot be fetched is returned without them.
func (f *Fetcher) Commits(ctx context.Context, ref source.Ref, limit int) ([]source.Commit, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	list, _, err := f.client.Repositories.ListCommits(ctx, ref.Owner, ref.Name, &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, wrapError(err, "list commits")
	}
	if len(list) > limit {
		list = list[:limit]
	}

	commits := make([]source.Commit, 0, len(list))
	for _, rc := range list {
		c := source.Commit{
			SHA:         rc.GetSHA(),
			Message:     rc.GetCommit().GetMessage(),
			Author:      rc.GetCommit().GetAuthor().GetName(),
			AuthorEmail: rc.GetCommit().GetAuthor().GetEmail(),
			Date:        rc.GetCommit().GetAuthor().GetDate().Time,
		}

		if err := f.wait(ctx); err != nil {
			return nil, err
		}
		detail, _, err := f.client.Repositories.GetCommit(ctx, ref.Owner, ref.Name, c.SHA, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Debug("commit stats unavailable", "sha", c.SHA, "error", err)
		} else {
			c.Additions = detail.GetStats().GetAdditions()
			c.Deletions = detail.GetStats().GetDeletions()
		}

		commits = append(commits, c)
	}
	return commits, nil
}

// wrapError adds the operation and, for API errors, the HTTP status.
func wrapError(err error, operation string) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: rate limited until %s: %w", operation, rateErr.Rate.Reset.Time.Format(time.RFC3339), err)
	}

	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		return fmt.Errorf("%s: github returned %d: %w", operation, apiErr.Response.StatusCode, err)
	}

	return fmt.Errorf("%s: %w", operation, err)
}
