// Package ingest turns a repository snapshot into indexed chunks, commit
// summaries and an analysis, and runs that work on a background queue.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/reposcope/pkg/eventstream"
	"github.com/papercomputeco/reposcope/pkg/eventstream/nop"
	"github.com/papercomputeco/reposcope/pkg/index"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

// DefaultCommitLimit is how many recent commits are summarized per run.
const DefaultCommitLimit = 20

// Step names a stage of the pipeline.
type Step string

const (
	StepMarkProcessing Step = "mark_processing"
	StepFetchFiles     Step = "fetch_files"
	StepClear          Step = "clear"
	StepIndexFiles     Step = "index_files"
	StepCommits        Step = "commits"
	StepAnalyze        Step = "analyze"
	StepMarkReady      Step = "mark_ready"
)

// StepError is a fatal failure of one pipeline step. The repository is left
// in status error; chunks stored before the failure are kept.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Indexer is the part of the embedding index ingestion writes to.
type Indexer interface {
	AddDocument(ctx context.Context, documentID, content string, meta vector.Metadata) (int, error)
	ClearRepository(ctx context.Context, repositoryID string) (int, error)
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Storage    storage.Driver
	Index      Indexer
	Fetcher    source.Fetcher
	Summarizer synth.Summarizer

	// Publisher receives a status event on every transition. Defaults to nop.
	Publisher eventstream.Publisher

	// CommitLimit defaults to DefaultCommitLimit.
	CommitLimit int

	Logger  *slog.Logger
	Metrics *metrics.Registry

	// Now overrides the clock.
	Now func() time.Time
}

// Pipeline ingests one repository at a time. It is safe for concurrent use
// on different repositories.
type Pipeline struct {
	storage     storage.Driver
	index       Indexer
	fetcher     source.Fetcher
	summarizer  synth.Summarizer
	publisher   eventstream.Publisher
	commitLimit int
	logger      *slog.Logger
	metrics     *metrics.Registry
	now         func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(c Config) (*Pipeline, error) {
	switch {
	case c.Storage == nil:
		return nil, errors.New("ingest pipeline requires storage")
	case c.Index == nil:
		return nil, errors.New("ingest pipeline requires an index")
	case c.Fetcher == nil:
		return nil, errors.New("ingest pipeline requires a source fetcher")
	case c.Summarizer == nil:
		return nil, errors.New("ingest pipeline requires a summarizer")
	}

	p := &Pipeline{
		storage:     c.Storage,
		index:       c.Index,
		fetcher:     c.Fetcher,
		summarizer:  c.Summarizer,
		publisher:   c.Publisher,
		commitLimit: c.CommitLimit,
		logger:      c.Logger,
		metrics:     c.Metrics,
		now:         c.Now,
	}
	if p.publisher == nil {
		p.publisher = nop.NewPublisher(nil)
	}
	if p.commitLimit <= 0 {
		p.commitLimit = DefaultCommitLimit
	}
	if p.logger == nil {
		p.logger = reslog.Nop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// RefFor builds the source reference of a stored repository.
func RefFor(repo *storage.Repository) source.Ref {
	return source.Ref{
		Kind:  string(repo.Source),
		Owner: repo.Owner,
		Name:  repo.Name,
		Path:  repo.Path,
	}
}

// Run executes every step for repositoryID. A nil error means the repository
// is ready; otherwise the error is a *StepError and the repository is marked
// error.
func (p *Pipeline) Run(ctx context.Context, repositoryID string) error {
	logger := p.logger.With("repository_id", repositoryID)
	start := p.now()

	repo, err := p.storage.GetRepository(ctx, repositoryID)
	if err != nil {
		p.metrics.IngestFinished("error")
		return &StepError{Step: StepMarkProcessing, Err: err}
	}

	repo.Status = storage.StatusProcessing
	repo.Error = ""
	if err := p.save(ctx, repo); err != nil {
		return p.fail(ctx, logger, repo, StepMarkProcessing, err)
	}

	ref := RefFor(repo)
	files, err := p.fetcher.Files(ctx, ref)
	if err != nil {
		return p.fail(ctx, logger, repo, StepFetchFiles, err)
	}
	logger.Info("fetched repository files", "files", len(files))

	if _, err := p.index.ClearRepository(ctx, repositoryID); err != nil {
		return p.fail(ctx, logger, repo, StepClear, err)
	}
	if _, err := p.storage.DeleteFiles(ctx, repositoryID); err != nil {
		return p.fail(ctx, logger, repo, StepClear, err)
	}

	processed, err := p.indexFiles(ctx, logger, repositoryID, files)
	if err != nil {
		return p.fail(ctx, logger, repo, StepIndexFiles, err)
	}

	if err := p.summarizeCommits(ctx, logger, repositoryID, ref); err != nil {
		return p.fail(ctx, logger, repo, StepCommits, err)
	}

	analysis, err := p.summarizer.AnalyzeRepository(ctx, analysisFiles(files))
	if err != nil {
		return p.fail(ctx, logger, repo, StepAnalyze, err)
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return p.fail(ctx, logger, repo, StepAnalyze, err)
	}

	now := p.now()
	repo.Status = storage.StatusReady
	repo.FileCount = processed
	repo.LastAnalyzed = &now
	repo.Summary = analysis.Summary
	repo.Analysis = raw
	if repo.Language == "" && analysis.PrimaryLanguage != "unknown" {
		repo.Language = analysis.PrimaryLanguage
	}
	if err := p.save(ctx, repo); err != nil {
		return p.fail(ctx, logger, repo, StepMarkReady, err)
	}

	p.metrics.IngestFinished("ready")
	logger.Info("repository ready",
		"files", processed,
		"duration", p.now().Sub(start).String(),
	)
	return nil
}

// indexFiles persists a record for every file, then indexes it. A file whose
// chunks all fail to embed keeps its record with zero chunks. Only
// cancellation aborts the loop.
func (p *Pipeline) indexFiles(ctx context.Context, logger *slog.Logger, repositoryID string, files []source.File) (int, error) {
	processed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		record := &storage.File{
			RepositoryID: repositoryID,
			Path:         f.Path,
			Language:     f.Language,
			Size:         f.Size,
		}
		if err := p.storage.CreateFile(ctx, record); err != nil {
			logger.Warn("failed to persist file record", "path", f.Path, "error", err)
			continue
		}
		processed++

		stored, err := p.index.AddDocument(ctx, index.DocumentID(repositoryID, f.Path), f.Content, vector.Metadata{
			Path:     f.Path,
			Language: f.Language,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return processed, ctxErr
			}
			logger.Warn("file not fully indexed", "path", f.Path, "chunks", stored, "error", err)
		}
		if stored == 0 {
			continue
		}
		if err := p.storage.UpdateFileChunks(ctx, record.ID, stored); err != nil {
			logger.Warn("failed to record chunk count", "path", f.Path, "error", err)
		}
	}
	return processed, nil
}

// summarizeCommits stores up to commitLimit recent commits with summaries.
// A failing commit is skipped; a failing history fetch skips the step.
func (p *Pipeline) summarizeCommits(ctx context.Context, logger *slog.Logger, repositoryID string, ref source.Ref) error {
	commits, err := p.fetcher.Commits(ctx, ref, p.commitLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("skipping commit history", "error", err)
		return nil
	}

	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary, err := p.summarizer.SummarizeCommit(ctx, synth.Commit{
			Message:   c.Message,
			Additions: c.Additions,
			Deletions: c.Deletions,
		})
		if err != nil {
			logger.Warn("skipping commit", "sha", c.SHA, "error", err)
			continue
		}

		if err := p.storage.UpsertCommit(ctx, &storage.Commit{
			RepositoryID: repositoryID,
			SHA:          c.SHA,
			Message:      c.Message,
			Author:       c.Author,
			AuthorEmail:  c.AuthorEmail,
			Date:         c.Date,
			Additions:    c.Additions,
			Deletions:    c.Deletions,
			Summary:      summary.Summary,
			Impact:       summary.Impact,
		}); err != nil {
			logger.Warn("skipping commit", "sha", c.SHA, "error", err)
		}
	}
	return nil
}

func analysisFiles(files []source.File) []synth.File {
	out := make([]synth.File, len(files))
	for i, f := range files {
		out[i] = synth.File{Path: f.Path, Content: f.Content, Language: f.Language}
	}
	return out
}

// save persists repo and publishes its new status.
func (p *Pipeline) save(ctx context.Context, repo *storage.Repository) error {
	if err := p.storage.UpdateRepository(ctx, repo); err != nil {
		return err
	}
	p.publish(ctx, repo)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, repo *storage.Repository) {
	event := eventstream.NewRepositoryStatusEvent(repo.ID, repo.FullName, string(repo.Status), repo.FileCount, repo.Error)
	if err := p.publisher.PublishStatus(ctx, event); err != nil {
		p.logger.Warn("failed to publish status event",
			"repository_id", repo.ID,
			"status", repo.Status,
			"error", err,
		)
	}
}

// fail marks the repository error and returns the step error. The status
// write ignores ctx cancellation so a cancelled run does not stay processing.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, repo *storage.Repository, step Step, err error) error {
	stepErr := &StepError{Step: step, Err: err}

	outcome := "error"
	if errors.Is(err, context.Canceled) {
		outcome = "cancelled"
	}
	p.metrics.IngestFinished(outcome)

	logger.Error("ingestion failed", "step", string(step), "error", err)

	repo.Status = storage.StatusError
	repo.Error = stepErr.Error()
	if saveErr := p.save(context.WithoutCancel(ctx), repo); saveErr != nil && !storage.IsNotFound(saveErr) {
		logger.Error("failed to mark repository error", "error", saveErr)
	}
	return stepErr
}
