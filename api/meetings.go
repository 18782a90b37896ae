package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/pkg/meeting"
)

// handleListMeetings handles GET /api/meetings.
func (s *Server) handleListMeetings(c *fiber.Ctx) error {
	meetings, err := s.config.Meetings.List(c.UserContext())
	if err != nil {
		return s.fail(c, err, "failed to get meetings")
	}
	return c.JSON(fiber.Map{"meetings": meetings})
}

// handleCreateMeeting handles POST /api/meetings.
func (s *Server) handleCreateMeeting(c *fiber.Ctx) error {
	var in meeting.Input
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	m, _, err := s.config.Meetings.Ingest(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, meeting.ErrEmptyTranscript) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "transcript_required"})
		}
		return s.fail(c, err, "failed to ingest meeting")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"meeting": m})
}

// handleGetMeeting handles GET /api/meetings/:id.
func (s *Server) handleGetMeeting(c *fiber.Ctx) error {
	m, segments, err := s.config.Meetings.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err, "failed to get meeting")
	}
	return c.JSON(fiber.Map{"meeting": m, "segments": segments})
}

// handleSummarizeMeeting handles POST /api/meetings/:id/summarize. A failed
// summary is reported through the meeting's error status.
func (s *Server) handleSummarizeMeeting(c *fiber.Ctx) error {
	m, err := s.config.Meetings.Summarize(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err, "failed to summarize meeting")
	}
	return c.JSON(fiber.Map{"meeting": m})
}
