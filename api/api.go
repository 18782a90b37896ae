package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
)

// Server is the API server for managing and querying repositories
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The storage driver and index are
// injected so they can be shared with the ingestion queue.
func NewServer(config Config) (*Server, error) {
	if config.Storage == nil {
		return nil, errors.New("storage driver is required")
	}
	if config.Index == nil {
		return nil, errors.New("index is required")
	}
	if config.Fetcher == nil {
		return nil, errors.New("source fetcher is required")
	}
	if config.Queue == nil {
		return nil, errors.New("ingest queue is required")
	}
	if config.Ask == nil {
		return nil, errors.New("ask service is required")
	}
	if config.Meetings == nil {
		return nil, errors.New("meeting service is required")
	}
	if config.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if config.Logger == nil {
		config.Logger = reslog.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config: config,
		logger: config.Logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}
	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP))
	}

	v1 := app.Group("/api", s.observe, s.rateLimit)
	v1.Get("/health", s.handleHealth)
	v1.Get("/search", s.handleSearch)

	v1.Get("/repositories", s.handleListRepositories)
	v1.Post("/repositories", s.handleCreateRepository)
	v1.Get("/repositories/:id", s.handleGetRepository)
	v1.Delete("/repositories/:id", s.handleDeleteRepository)
	v1.Post("/repositories/:id/reingest", s.handleReingest)
	v1.Post("/repositories/:id/query", s.handleQuery)
	v1.Get("/repositories/:id/query/stream", s.handleQueryStream)
	v1.Get("/repositories/:id/queries", s.handleListRepositoryQueries)
	v1.Get("/repositories/:id/commits", s.handleListCommits)

	v1.Get("/queries", s.handleListQueries)
	v1.Post("/commits/:id/summary", s.handleCommitSummary)

	v1.Get("/meetings", s.handleListMeetings)
	v1.Post("/meetings", s.handleCreateMeeting)
	v1.Get("/meetings/:id", s.handleGetMeeting)
	v1.Post("/meetings/:id/summarize", s.handleSummarizeMeeting)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports liveness and uptime.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"uptime_seconds": int(s.config.Metrics.Uptime().Seconds()),
	})
}
