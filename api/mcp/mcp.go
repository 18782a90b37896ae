// Package mcp serves repository listing, search and question answering as
// Model Context Protocol tools over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/reposcope/api/search"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
	"github.com/papercomputeco/reposcope/pkg/utils"
)

// Asker answers a question about a ready repository.
type Asker interface {
	Ask(ctx context.Context, repositoryID, question string) (*storage.Query, *synth.Answer, error)
}

// Lister lists registered repositories.
type Lister interface {
	ListRepositories(ctx context.Context) ([]*storage.Repository, error)
}

type Config struct {
	Searcher search.Searcher
	Asker    Asker

	// Lister backs list_repositories. The tool is left out when nil.
	Lister Lister

	// Noop serves an MCP endpoint with no tools.
	Noop bool

	Logger *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.Noop:
		return nil
	case c.Searcher == nil:
		return errors.New("searcher is required")
	case c.Asker == nil:
		return errors.New("asker is required")
	case c.Logger == nil:
		return errors.New("logger is required")
	}
	return nil
}

type Server struct {
	config  Config
	handler *mcp.StreamableHTTPHandler
}

func NewServer(c Config) (*Server, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	s := &Server{config: c}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "reposcope", Version: version()}, &mcp.ServerOptions{})
	if !c.Noop {
		s.addTools(mcpServer)
	}

	// Stateless: every request is self contained, so any replica can serve it.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return mcpServer },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
	return s, nil
}

func (s *Server) addTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{Name: searchToolName, Description: searchDescription}, s.handleSearch)
	mcp.AddTool(srv, &mcp.Tool{Name: askToolName, Description: askDescription}, s.handleAsk)
	if s.config.Lister != nil {
		mcp.AddTool(srv, &mcp.Tool{Name: listToolName, Description: listDescription}, s.handleList)
	}
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError reports a failure to the calling model instead of the transport.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func version() string {
	v, _, _ := utils.BuildInfo()
	return v
}
