package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/reposcope/pkg/ratelimit"
)

// observe records every API request by route template, method and status.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}

	s.config.Metrics.ObserveRequest(c.Route().Path, c.Method(), status, time.Since(start))
	return err
}

// rateLimit enforces the per client token bucket.
func (s *Server) rateLimit(c *fiber.Ctx) error {
	if s.config.RateLimiter == nil {
		return c.Next()
	}

	ok, wait := s.config.RateLimiter.Allow(c.IP())
	if ok {
		return c.Next()
	}

	s.config.Metrics.RateLimited()
	s.logger.Debug("rate limited",
		"ip", c.IP(),
		"retry_after", wait,
	)

	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(ratelimit.RetryAfterSeconds(wait)))
	return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "Rate limit exceeded"})
}
