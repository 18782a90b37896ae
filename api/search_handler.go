package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/papercomputeco/reposcope/api/search"
)

// handleSearch handles GET /api/search requests.
// Query parameters:
//   - q (required): the search query text
//   - repository_id (optional): restrict results to one repository
//   - top_k (optional, default 3): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	in := apisearch.SearchInput{
		Query:        c.Query("q"),
		RepositoryID: c.Query("repository_id"),
	}

	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		in.TopK = parsed
	}

	if in.RepositoryID != "" {
		if _, err := s.config.Storage.GetRepository(c.UserContext(), in.RepositoryID); err != nil {
			return s.fail(c, err, "failed to search")
		}
	}

	output, err := apisearch.Search(c.UserContext(), in, s.config.Index, s.logger)
	if err != nil {
		return s.fail(c, err, "failed to search")
	}

	return c.JSON(output)
}
