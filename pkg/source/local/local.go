// Package local reads repository snapshots from a directory on disk.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/papercomputeco/reposcope/pkg/git"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/source"
)

// Fetcher implements source.Fetcher over the local filesystem. Commits are
// read from git when the directory is the root of a checkout.
type Fetcher struct {
	filter source.Filter
	logger *slog.Logger
}

// New creates a local fetcher.
func New(filter source.Filter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = reslog.Nop()
	}
	return &Fetcher{filter: filter, logger: logger}
}

// Ref builds a local reference for dir.
func Ref(dir string) (source.Ref, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return source.Ref{}, fmt.Errorf("%w: %w", source.ErrInvalidReference, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return source.Ref{}, fmt.Errorf("%w: %w", source.ErrInvalidReference, err)
	}
	if !st.IsDir() {
		return source.Ref{}, fmt.Errorf("%w: %s is not a directory", source.ErrInvalidReference, abs)
	}
	return source.Ref{Kind: source.KindLocal, Owner: source.KindLocal, Name: filepath.Base(abs), Path: abs}, nil
}

func (f *Fetcher) Info(_ context.Context, ref source.Ref) (*source.Info, error) {
	if _, err := os.Stat(ref.Path); err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref.Path, err)
	}
	return &source.Info{
		Name:     ref.Name,
		FullName: ref.FullName(),
		Owner:    ref.Owner,
		URL:      "file://" + filepath.ToSlash(ref.Path),
	}, nil
}

// Files walks the directory in lexical order. Unreadable files are logged and
// skipped.
func (f *Fetcher) Files(ctx context.Context, ref source.Ref) ([]source.File, error) {
	var files []source.File

	err := filepath.WalkDir(ref.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == ref.Path {
				return err
			}
			f.logger.Warn("skipping path", "path", p, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if p != ref.Path && source.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(ref.Path, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			f.logger.Warn("skipping file", "path", rel, "error", err)
			return nil
		}
		if !f.filter.Allow(rel, info.Size()) {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			f.logger.Warn("skipping file", "path", rel, "error", err)
			return nil
		}

		files = append(files, source.File{
			Path:     rel,
			Content:  string(data),
			Language: source.Language(rel),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", ref.Path, err)
	}
	return files, nil
}

// Commits returns the most recent commits of a git checkout. Directories that
// are not a checkout root report none.
func (f *Fetcher) Commits(ctx context.Context, ref source.Ref, limit int) ([]source.Commit, error) {
	if !git.IsRoot(ctx, ref.Path) {
		return nil, nil
	}

	log, err := git.Log(ctx, ref.Path, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("could not read git log", "path", ref.Path, "error", err)
		return nil, nil
	}

	commits := make([]source.Commit, 0, len(log))
	for _, c := range log {
		commits = append(commits, source.Commit{
			SHA:         c.SHA,
			Message:     c.Message,
			Author:      c.Author,
			AuthorEmail: c.AuthorEmail,
			Date:        c.Date,
			Additions:   c.Additions,
			Deletions:   c.Deletions,
		})
	}
	return commits, nil
}
