// Package source fetches repository snapshots and commit history.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// KindGitHub identifies repositories fetched from the GitHub API.
	KindGitHub = "github"

	// KindLocal identifies repositories read from a local directory.
	KindLocal = "local"
)

// ErrUnsupportedSource is returned by Mux for a kind it has no fetcher for.
var ErrUnsupportedSource = errors.New("unsupported source")

// ErrInvalidReference is returned when a repository reference cannot be parsed.
var ErrInvalidReference = errors.New("invalid repository reference")

// Ref points at a repository in a source.
type Ref struct {
	Kind  string
	Owner string
	Name  string

	// Path is the directory of a local repository.
	Path string
}

// FullName returns "owner/name".
func (r Ref) FullName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "/" + r.Name
}

// Info is repository metadata as reported by the source.
type Info struct {
	Name          string
	FullName      string
	Owner         string
	Description   string
	Language      string
	URL           string
	DefaultBranch string
}

// File is one text file of a repository snapshot.
type File struct {
	Path     string
	Content  string
	Language string
	Size     int64
}

// Commit is one entry of the recent history with basic stats.
type Commit struct {
	SHA         string
	Message     string
	Author      string
	AuthorEmail string
	Date        time.Time
	Additions   int
	Deletions   int
}

// Fetcher supplies repository snapshots and recent commits.
type Fetcher interface {
	Info(ctx context.Context, ref Ref) (*Info, error)
	Files(ctx context.Context, ref Ref) ([]File, error)
	Commits(ctx context.Context, ref Ref, limit int) ([]Commit, error)
}

var githubURL = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/.*)?$`)

// ParseGitHubURL extracts owner and name from a GitHub repository URL.
func ParseGitHubURL(url string) (Ref, error) {
	m := githubURL.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %q is not a GitHub repository URL", ErrInvalidReference, url)
	}
	return Ref{Kind: KindGitHub, Owner: m[1], Name: m[2]}, nil
}

// Mux dispatches to a Fetcher by Ref.Kind.
type Mux map[string]Fetcher

func (m Mux) fetcher(ref Ref) (Fetcher, error) {
	f, ok := m[ref.Kind]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, ref.Kind)
	}
	return f, nil
}

func (m Mux) Info(ctx context.Context, ref Ref) (*Info, error) {
	f, err := m.fetcher(ref)
	if err != nil {
		return nil, err
	}
	return f.Info(ctx, ref)
}

func (m Mux) Files(ctx context.Context, ref Ref) ([]File, error) {
	f, err := m.fetcher(ref)
	if err != nil {
		return nil, err
	}
	return f.Files(ctx, ref)
}

func (m Mux) Commits(ctx context.Context, ref Ref, limit int) ([]Commit, error) {
	f, err := m.fetcher(ref)
	if err != nil {
		return nil, err
	}
	return f.Commits(ctx, ref, limit)
}
