package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/index"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

type repositoryBody struct {
	Repository storage.Repository `json:"repository"`
}

var _ = Describe("Repository handlers", func() {
	var st *testStack

	BeforeEach(func() {
		st = newTestStack(nil)
		st.fetcher.Metadata = &source.Info{
			Name:     "web",
			FullName: "acme/web",
			Owner:    "acme",
			Language: "Python",
			URL:      "https://github.com/acme/web",
		}
		st.fetcher.FileList = []source.File{
			{Path: "auth.py", Content: "def login(user, password):\n    return check(user, password)", Language: "python"},
			{Path: "README.md", Content: "# web", Language: "markdown"},
		}
	})

	Describe("POST /api/repositories", func() {
		It("creates a pending repository and ingests it in the background", func() {
			status, body := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{URL: "https://github.com/acme/web"})
			Expect(status).To(Equal(fiber.StatusCreated))

			created := decode[repositoryBody](body).Repository
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.FullName).To(Equal("acme/web"))
			Expect(created.Source).To(Equal(storage.SourceGitHub))
			Expect(created.Status).To(Equal(storage.StatusPending))

			Eventually(func() storage.RepositoryStatus {
				repo, err := st.store.GetRepository(context.Background(), created.ID)
				Expect(err).NotTo(HaveOccurred())
				return repo.Status
			}).Should(Equal(storage.StatusReady))

			repo, err := st.store.GetRepository(context.Background(), created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.FileCount).To(Equal(2))
		})

		It("rejects an invalid GitHub URL", func() {
			status, body := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{URL: "https://gitlab.com/acme/web"})
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](body).Error).To(ContainSubstring("not a GitHub repository URL"))
		})

		It("requires a url or path", func() {
			status, _ := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{})
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a local path that is not a directory", func() {
			status, _ := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{Path: "/definitely/not/here"})
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})

		It("connects a local directory", func() {
			dir := GinkgoT().TempDir()
			st.fetcher.Metadata = nil

			status, body := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{URL: "local:" + dir})
			Expect(status).To(Equal(fiber.StatusCreated))

			created := decode[repositoryBody](body).Repository
			Expect(created.Source).To(Equal(storage.SourceLocal))
			Expect(created.Path).To(Equal(dir))
		})

		It("returns 502 when the source cannot be read", func() {
			st.fetcher.InfoErr = errors.New("github down")
			status, _ := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{URL: "https://github.com/acme/web"})
			Expect(status).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("GET /api/repositories", func() {
		It("lists repositories", func() {
			st.readyRepository(nil)

			status, body := st.do(http.MethodGet, "/api/repositories", nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(decode[map[string][]storage.Repository](body)["repositories"]).To(HaveLen(1))
		})
	})

	Describe("GET /api/repositories/:id", func() {
		It("returns the repository with files and commits", func() {
			repo := st.readyRepository(map[string]string{"auth.py": "def login(): pass"})

			status, body := st.do(http.MethodGet, "/api/repositories/"+repo.ID, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"files":[{`))
			Expect(string(body)).To(ContainSubstring(`"commits":[]`))
		})

		It("returns 404 for a missing repository", func() {
			status, body := st.do(http.MethodGet, "/api/repositories/missing", nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
			Expect(decode[ErrorResponse](body).Error).To(ContainSubstring("repository not found"))
		})
	})

	Describe("DELETE /api/repositories/:id", func() {
		It("deletes the repository and clears its chunks", func() {
			repo := st.readyRepository(map[string]string{"auth.py": "def login(): pass"})
			other := st.readyRepository(map[string]string{"main.go": "package main"})
			Expect(st.vectors.Len()).To(Equal(2))

			status, body := st.do(http.MethodDelete, "/api/repositories/"+repo.ID, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal(`{"success":true}`))

			Expect(st.vectors.Len()).To(Equal(1))
			results, err := st.index.Search(context.Background(), "main", 3, index.RepositoryPrefix(other.ID))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			status, _ = st.do(http.MethodGet, "/api/repositories/"+repo.ID, nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
		})

		It("cancels in-flight ingestion", func() {
			st.fetcher.Block = make(chan struct{})
			DeferCleanup(func() { close(st.fetcher.Block) })

			_, body := st.do(http.MethodPost, "/api/repositories", CreateRepositoryRequest{URL: "https://github.com/acme/web"})
			created := decode[repositoryBody](body).Repository
			Eventually(st.fetcher.Calls).Should(Equal(1))

			status, _ := st.do(http.MethodDelete, "/api/repositories/"+created.ID, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(st.queue.InFlight(created.ID)).To(BeFalse())
			Expect(st.vectors.Len()).To(BeZero())
		})

		It("returns 404 for a missing repository", func() {
			status, _ := st.do(http.MethodDelete, "/api/repositories/missing", nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("POST /api/repositories/:id/reingest", func() {
		It("accepts a reingest and refuses a duplicate", func() {
			st.fetcher.Block = make(chan struct{})
			DeferCleanup(func() { close(st.fetcher.Block) })
			repo := st.readyRepository(nil)

			status, _ := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/reingest", nil)
			Expect(status).To(Equal(fiber.StatusAccepted))

			status, body := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/reingest", nil)
			Expect(status).To(Equal(fiber.StatusConflict))
			Expect(decode[ErrorResponse](body).Error).NotTo(BeEmpty())
		})

		It("returns 404 for a missing repository", func() {
			status, _ := st.do(http.MethodPost, "/api/repositories/missing/reingest", nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
		})
	})
})
