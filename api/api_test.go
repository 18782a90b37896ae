package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/ratelimit"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

func vectorMeta(path string) vector.Metadata {
	return vector.Metadata{Path: path, Language: source.Language(path)}
}

var _ = Describe("Server", func() {
	var st *testStack

	BeforeEach(func() {
		st = newTestStack(nil)
	})

	Describe("NewServer", func() {
		It("requires a storage driver", func() {
			_, err := NewServer(Config{})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
		})
	})

	It("answers ping", func() {
		status, body := st.do(http.MethodGet, "/ping", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	It("reports health", func() {
		status, body := st.do(http.MethodGet, "/api/health", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"status":"ok"`))
	})

	It("renders unknown routes as JSON errors", func() {
		status, body := st.do(http.MethodGet, "/api/nope", nil)
		Expect(status).To(Equal(fiber.StatusNotFound))
		Expect(decode[ErrorResponse](body).Error).NotTo(BeEmpty())
	})

	It("exposes prometheus metrics", func() {
		st.do(http.MethodGet, "/api/repositories", nil)

		status, body := st.do(http.MethodGet, "/metrics", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(ContainSubstring(`reposcope_api_requests_total{method="GET",route="/api/repositories",status="200"} 1`))
	})

	Describe("rate limiting", func() {
		It("returns 429 with Retry-After once the bucket is empty", func() {
			limiter, err := ratelimit.New(ratelimit.Config{Limit: 2, Window: time.Minute})
			Expect(err).NotTo(HaveOccurred())
			st = newTestStack(limiter)

			for range 2 {
				status, _ := st.do(http.MethodGet, "/api/repositories", nil)
				Expect(status).To(Equal(fiber.StatusOK))
			}

			req, err := http.NewRequest(http.MethodGet, "/api/repositories", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := st.server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))
			Expect(resp.Header.Get("Retry-After")).NotTo(BeEmpty())
		})

		It("does not limit the ping endpoint", func() {
			limiter, err := ratelimit.New(ratelimit.Config{Limit: 1, Window: time.Minute})
			Expect(err).NotTo(HaveOccurred())
			st = newTestStack(limiter)

			for range 3 {
				status, _ := st.do(http.MethodGet, "/ping", nil)
				Expect(status).To(Equal(fiber.StatusOK))
			}
		})
	})

	Describe("GET /api/search", func() {
		It("requires q", func() {
			status, _ := st.do(http.MethodGet, "/api/search", nil)
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a bad top_k", func() {
			status, body := st.do(http.MethodGet, "/api/search?q=login&top_k=zero", nil)
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("top_k must be a positive integer"))
		})

		It("returns 404 for an unknown repository", func() {
			status, _ := st.do(http.MethodGet, "/api/search?q=login&repository_id=missing", nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
		})

		It("returns matching chunks", func() {
			repo := st.readyRepository(map[string]string{"auth.py": "def login(user, password):\n    return True"})

			status, body := st.do(http.MethodGet, "/api/search?q=login&repository_id="+repo.ID, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"path":"auth.py"`))
		})
	})

	Describe("statusFor", func() {
		It("maps domain errors", func() {
			Expect(statusFor(storage.ErrNotFound{Kind: "repository"})).To(Equal(fiber.StatusNotFound))
			Expect(statusFor(source.ErrInvalidReference)).To(Equal(fiber.StatusBadRequest))
			Expect(statusFor(context.Canceled)).To(Equal(fiber.StatusInternalServerError))
		})
	})
})
