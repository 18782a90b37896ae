package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/pkg/synth"
)

// handleCommitSummary handles POST /api/commits/:id/summary. A stored
// summary is returned as cached unless force=true is given.
func (s *Server) handleCommitSummary(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commit, err := s.config.Storage.GetCommit(ctx, c.Params("id"))
	if err != nil {
		return s.fail(c, err, "failed to summarize commit")
	}
	if _, err := s.config.Storage.GetRepository(ctx, commit.RepositoryID); err != nil {
		return s.fail(c, err, "failed to summarize commit")
	}

	if commit.Summary != "" && !c.QueryBool("force") {
		return c.JSON(fiber.Map{"commit": commit, "cached": true})
	}

	summary, err := s.config.Summarizer.SummarizeCommit(ctx, synth.Commit{
		Message:   commit.Message,
		Additions: commit.Additions,
		Deletions: commit.Deletions,
	})
	if err != nil {
		if !errors.Is(err, synth.ErrSynthesis) {
			err = fmt.Errorf("%w: %w", synth.ErrSynthesis, err)
		}
		return s.fail(c, err, "failed to summarize commit")
	}

	if err := s.config.Storage.UpdateCommitSummary(ctx, commit.ID, summary.Summary, summary.Impact); err != nil {
		return s.fail(c, err, "failed to summarize commit")
	}

	updated, err := s.config.Storage.GetCommit(ctx, commit.ID)
	if err != nil {
		return s.fail(c, err, "failed to summarize commit")
	}

	return c.JSON(fiber.Map{"commit": updated, "cached": false})
}
