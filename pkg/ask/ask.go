// Package ask answers questions about indexed repositories, either in one
// response or as a token stream, and records every answered question.
package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/stream"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

var (
	// ErrValidation is wrapped by every rejected input.
	ErrValidation = errors.New("validation error")

	// ErrNotReady is returned when the repository has not finished ingestion.
	ErrNotReady = errors.New("repository is still being processed")
)

// Config holds the collaborators of a Service.
type Config struct {
	Storage     storage.Driver
	Retriever   stream.ContextRetriever
	Synthesizer synth.Synthesizer

	// Pace is passed to the stream coordinator.
	Pace time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Service checks preconditions, answers and persists queries.
type Service struct {
	storage     storage.Driver
	retriever   stream.ContextRetriever
	synthesizer synth.Synthesizer
	coordinator *stream.Coordinator
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// NewService creates a Service.
func NewService(c Config) (*Service, error) {
	if c.Storage == nil || c.Retriever == nil || c.Synthesizer == nil {
		return nil, errors.New("ask service requires storage, retriever and synthesizer")
	}
	if c.Logger == nil {
		c.Logger = reslog.Nop()
	}

	return &Service{
		storage:     c.Storage,
		retriever:   c.Retriever,
		synthesizer: c.Synthesizer,
		coordinator: stream.NewCoordinator(stream.Config{
			Retriever:   c.Retriever,
			Synthesizer: c.Synthesizer,
			Pace:        c.Pace,
			Logger:      c.Logger,
			Metrics:     c.Metrics,
		}),
		logger:  c.Logger,
		metrics: c.Metrics,
	}, nil
}

// Describe is the repository description handed to the synthesizer.
func Describe(repo *storage.Repository) string {
	if repo.Language == "" {
		return "Repository: " + repo.FullName
	}
	return fmt.Sprintf("Repository: %s (%s)", repo.FullName, repo.Language)
}

// Prepare checks, in order, that the repository exists, the question is not
// blank and the repository is ready.
func (s *Service) Prepare(ctx context.Context, repositoryID, question string) (*storage.Repository, error) {
	repo, err := s.storage.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question required", ErrValidation)
	}
	if repo.Status != storage.StatusReady {
		return nil, ErrNotReady
	}
	return repo, nil
}

// Ask answers question in one response and persists the query.
func (s *Service) Ask(ctx context.Context, repositoryID, question string) (*storage.Query, *synth.Answer, error) {
	start := time.Now()

	repo, err := s.Prepare(ctx, repositoryID, question)
	if err != nil {
		return nil, nil, err
	}
	logger := s.logger.With("repository_id", repositoryID)

	snippets, err := s.retriever.GetRelevantContext(ctx, question, repositoryID)
	if err != nil {
		if !retrieve.IsEmbeddingFailure(err) || ctx.Err() != nil {
			return nil, nil, fmt.Errorf("retrieving context: %w", err)
		}
		logger.Warn("answering without context", "error", err)
		snippets = nil
	}

	answer, err := s.synthesizer.Synthesize(ctx, question, snippets, Describe(repo))
	if err != nil {
		if !errors.Is(err, synth.ErrSynthesis) {
			err = fmt.Errorf("%w: %w", synth.ErrSynthesis, err)
		}
		return nil, nil, err
	}
	answer.Normalize()

	q, err := s.record(ctx, repositoryID, question, answer)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.ObserveQuery(time.Since(start))

	logger.Info("question answered",
		"sources", len(answer.Sources),
		"confidence", answer.Confidence,
	)
	return q, answer, nil
}

// Stream runs a streaming session for a repository that already passed
// Prepare. The query is persisted after the done event.
func (s *Service) Stream(ctx context.Context, repo *storage.Repository, question string, emit stream.EmitFunc) error {
	answer, err := s.coordinator.Stream(ctx, stream.Request{
		RepositoryID:    repo.ID,
		Question:        question,
		RepoDescription: Describe(repo),
	}, emit)
	if err != nil {
		return err
	}

	if _, err := s.record(context.WithoutCancel(ctx), repo.ID, question, answer); err != nil {
		s.logger.Warn("failed to persist streamed query", "repository_id", repo.ID, "error", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, repositoryID, question string, answer *synth.Answer) (*storage.Query, error) {
	q := &storage.Query{
		RepositoryID: repositoryID,
		Question:     question,
		Answer:       answer.Answer,
		Sources:      answer.Sources,
		Confidence:   answer.Confidence,
	}
	if err := s.storage.CreateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("persisting query: %w", err)
	}
	return q, nil
}
