package api

import (
	"bufio"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/pkg/sse"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/stream"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// QueryRequest is the body of POST /api/repositories/:id/query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse pairs the persisted query with the answer.
type QueryResponse struct {
	Query    *storage.Query `json:"query"`
	Response *synth.Answer  `json:"response"`
}

// handleQuery handles POST /api/repositories/:id/query.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	q, answer, err := s.config.Ask.Ask(c.UserContext(), c.Params("id"), req.Question)
	if err != nil {
		return s.fail(c, err, "failed to process query")
	}

	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	return c.JSON(QueryResponse{Query: q, Response: answer})
}

// handleQueryStream handles GET /api/repositories/:id/query/stream?q=...
//
// Preconditions are checked before the stream opens so that a missing
// repository, a blank question or an unready repository produce a plain JSON
// error. Once the stream is open every outcome is an SSE event.
func (s *Server) handleQueryStream(c *fiber.Ctx) error {
	question := c.Query("q")

	repo, err := s.config.Ask.Prepare(c.UserContext(), c.Params("id"), question)
	if err != nil {
		return s.fail(c, err, "failed to process query")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache, no-transform")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The fiber context is recycled once the handler returns, so the writer
	// below must only use values captured here.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.UserContext()))
	svc := s.config.Ask
	logger := s.logger.With("repository_id", repo.ID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		sw := sse.NewWriter(w)
		err := svc.Stream(ctx, repo, question, func(e stream.Event) error {
			if err := sw.WriteJSON(string(e.Type), e.Payload()); err != nil {
				// A failed flush means the client went away.
				cancel()
				return err
			}
			return nil
		})

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug("stream client disconnected")
		default:
			logger.Warn("stream ended with error", "error", err)
		}
	})

	return nil
}

// handleListRepositoryQueries handles GET /api/repositories/:id/queries.
func (s *Server) handleListRepositoryQueries(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	if _, err := s.config.Storage.GetRepository(ctx, id); err != nil {
		return s.fail(c, err, "failed to get queries")
	}

	queries, err := s.config.Storage.ListQueries(ctx, id)
	if err != nil {
		return s.fail(c, err, "failed to get queries")
	}
	return c.JSON(fiber.Map{"queries": queries})
}

// handleListQueries handles GET /api/queries.
func (s *Server) handleListQueries(c *fiber.Ctx) error {
	queries, err := s.config.Storage.ListQueries(c.UserContext(), "")
	if err != nil {
		return s.fail(c, err, "failed to get queries")
	}
	return c.JSON(fiber.Map{"queries": queries})
}
