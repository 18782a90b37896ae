package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/api/search"
	"github.com/papercomputeco/reposcope/pkg/ask"
	"github.com/papercomputeco/reposcope/pkg/ingest"
	"github.com/papercomputeco/reposcope/pkg/meeting"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case storage.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, ask.ErrValidation),
		errors.Is(err, search.ErrQueryRequired),
		errors.Is(err, meeting.ErrEmptyTranscript),
		errors.Is(err, source.ErrInvalidReference),
		errors.Is(err, source.ErrUnsupportedSource):
		return fiber.StatusBadRequest
	case errors.Is(err, ask.ErrNotReady),
		errors.Is(err, ingest.ErrAlreadyQueued):
		return fiber.StatusConflict
	case errors.Is(err, synth.ErrSynthesis):
		return fiber.StatusBadGateway
	case errors.Is(err, ingest.ErrQueueFull),
		errors.Is(err, ingest.ErrQueueClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse. Internal errors are logged and
// replaced by fallback so storage details do not leak to clients.
func (s *Server) fail(c *fiber.Ctx, err error, fallback string) error {
	status := statusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		s.logger.Error(fallback,
			"route", c.Route().Path,
			"error", err,
		)
		msg = fallback
	}
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// errorHandler renders errors returned from handlers and fiber itself
// (unknown routes, bad methods) in the same JSON shape.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
