package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/pkg/ingest"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/source/local"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

// CreateRepositoryRequest connects a GitHub repository by URL or a local
// directory by path. Exactly one of the two is set.
type CreateRepositoryRequest struct {
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// Ref resolves the request into a source reference.
func (r CreateRepositoryRequest) Ref() (source.Ref, error) {
	url := strings.TrimSpace(r.URL)
	path := strings.TrimSpace(r.Path)

	switch {
	case url != "" && path != "":
		return source.Ref{}, errors.Join(source.ErrInvalidReference, errors.New("set either url or path, not both"))
	case strings.HasPrefix(url, "local:"):
		return local.Ref(strings.TrimPrefix(url, "local:"))
	case url != "":
		return source.ParseGitHubURL(url)
	case path != "":
		return local.Ref(path)
	default:
		return source.Ref{}, errors.Join(source.ErrInvalidReference, errors.New("repository url or path required"))
	}
}

// handleListRepositories handles GET /api/repositories.
func (s *Server) handleListRepositories(c *fiber.Ctx) error {
	repos, err := s.config.Storage.ListRepositories(c.UserContext())
	if err != nil {
		return s.fail(c, err, "failed to get repositories")
	}
	return c.JSON(fiber.Map{"repositories": repos})
}

// handleCreateRepository handles POST /api/repositories. The repository is
// stored as pending and ingestion runs in the background.
func (s *Server) handleCreateRepository(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req CreateRepositoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	ref, err := req.Ref()
	if err != nil {
		return s.fail(c, err, "invalid repository reference")
	}

	info, err := s.config.Fetcher.Info(ctx, ref)
	if err != nil {
		s.logger.Warn("failed to read repository metadata",
			"repository", ref.FullName(),
			"error", err,
		)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to connect repository"})
	}

	repo := &storage.Repository{
		Name:        firstNonEmpty(info.Name, ref.Name),
		FullName:    firstNonEmpty(info.FullName, ref.FullName()),
		Owner:       firstNonEmpty(info.Owner, ref.Owner),
		Source:      storage.Source(ref.Kind),
		URL:         info.URL,
		Path:        ref.Path,
		Language:    info.Language,
		Description: info.Description,
		Status:      storage.StatusPending,
	}
	if err := s.config.Storage.CreateRepository(ctx, repo); err != nil {
		return s.fail(c, err, "failed to connect repository")
	}

	if err := s.enqueue(ctx, repo); err != nil {
		return s.fail(c, err, "failed to schedule ingestion")
	}

	if repo.Source == storage.SourceLocal && s.config.Watcher != nil {
		if err := s.config.Watcher.Watch(repo.ID, repo.Path); err != nil {
			s.logger.Warn("failed to watch repository",
				"repository_id", repo.ID,
				"path", repo.Path,
				"error", err,
			)
		}
	}

	s.logger.Info("repository connected",
		"repository_id", repo.ID,
		"full_name", repo.FullName,
		"source", repo.Source,
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"repository": repo})
}

// enqueue schedules ingestion of a new repository. A refused job marks the
// repository error so it does not stay pending.
func (s *Server) enqueue(ctx context.Context, repo *storage.Repository) error {
	err := s.config.Queue.Enqueue(repo.ID)
	if err == nil {
		return nil
	}

	s.logger.Warn("failed to enqueue ingestion",
		"repository_id", repo.ID,
		"error", err,
	)
	if !errors.Is(err, ingest.ErrAlreadyQueued) {
		repo.Status = storage.StatusError
		repo.Error = err.Error()
		if uerr := s.config.Storage.UpdateRepository(context.WithoutCancel(ctx), repo); uerr != nil {
			s.logger.Error("failed to mark repository error", "repository_id", repo.ID, "error", uerr)
		}
	}
	return err
}

// handleGetRepository handles GET /api/repositories/:id.
func (s *Server) handleGetRepository(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	repo, err := s.config.Storage.GetRepository(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to get repository")
	}

	files, err := s.config.Storage.ListFiles(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to get repository")
	}

	commits, err := s.config.Storage.ListCommits(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to get repository")
	}

	return c.JSON(fiber.Map{
		"repository": repo,
		"files":      files,
		"commits":    commits,
	})
}

// handleDeleteRepository handles DELETE /api/repositories/:id. In-flight
// ingestion is cancelled and waited for, then the repository's chunks are
// removed from the index before the records are deleted.
func (s *Server) handleDeleteRepository(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	if _, err := s.config.Storage.GetRepository(ctx, id); err != nil {
		return s.fail(c, err, "failed to delete repository")
	}

	stopped, err := s.config.Queue.Stop(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to delete repository")
	}
	if stopped {
		s.logger.Info("cancelled in-flight ingestion", "repository_id", id)
	}
	if s.config.Watcher != nil {
		s.config.Watcher.Unwatch(id)
	}

	removed, err := s.config.Index.ClearRepository(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to delete repository")
	}

	if err := s.config.Storage.DeleteRepository(ctx, id); err != nil {
		return s.fail(c, err, "failed to delete repository")
	}

	s.logger.Info("repository deleted",
		"repository_id", id,
		"chunks_removed", removed,
	)

	return c.JSON(fiber.Map{"success": true})
}

// handleReingest handles POST /api/repositories/:id/reingest.
func (s *Server) handleReingest(c *fiber.Ctx) error {
	repo, err := s.config.Storage.GetRepository(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err, "failed to reingest repository")
	}

	if err := s.config.Queue.Enqueue(repo.ID); err != nil {
		return s.fail(c, err, "failed to schedule ingestion")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"repository": repo})
}

// handleListCommits handles GET /api/repositories/:id/commits.
func (s *Server) handleListCommits(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	if _, err := s.config.Storage.GetRepository(ctx, id); err != nil {
		return s.fail(c, err, "failed to get commits")
	}

	commits, err := s.config.Storage.ListCommits(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to get commits")
	}
	return c.JSON(fiber.Map{"commits": commits})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
