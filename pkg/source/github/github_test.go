package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/source/github"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

var _ = Describe("Fetcher", func() {
	var (
		server  *httptest.Server
		fetcher *github.Fetcher
		ref     source.Ref
		authHdr string
	)

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /repos/acme/web", func(w http.ResponseWriter, r *http.Request) {
			authHdr = r.Header.Get("Authorization")
			writeJSON(w, map[string]any{
				"name":           "web",
				"full_name":      "acme/web",
				"owner":          map[string]any{"login": "acme"},
				"description":    "the web app",
				"language":       "Python",
				"html_url":       "https://github.com/acme/web",
				"default_branch": "main",
			})
		})
		mux.HandleFunc("GET /repos/acme/web/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("recursive")).NotTo(BeEmpty())
			writeJSON(w, map[string]any{
				"sha": "tree",
				"tree": []map[string]any{
					{"path": "src", "type": "tree", "sha": "d1"},
					{"path": "src/auth.py", "type": "blob", "sha": "b1", "size": 30},
					{"path": "logo.png", "type": "blob", "sha": "b2", "size": 30},
					{"path": "node_modules/x/index.js", "type": "blob", "sha": "b3", "size": 30},
					{"path": "big.go", "type": "blob", "sha": "b4", "size": 200000},
					{"path": "broken.go", "type": "blob", "sha": "b5", "size": 10},
					{"path": "README.md", "type": "blob", "sha": "b6", "size": 7},
				},
			})
		})
		mux.HandleFunc("GET /repos/acme/web/git/blobs/b1", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"sha": "b1", "encoding": "base64", "content": b64("def login(user):\n    return True\n")})
		})
		mux.HandleFunc("GET /repos/acme/web/git/blobs/b5", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		mux.HandleFunc("GET /repos/acme/web/git/blobs/b6", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"sha": "b6", "encoding": "utf-8", "content": "# web\n"})
		})
		mux.HandleFunc("GET /repos/acme/web/commits", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, []map[string]any{
				{"sha": "c2", "commit": map[string]any{"message": "fix login", "author": map[string]any{"name": "Ana", "email": "ana@example.com", "date": "2025-01-02T00:00:00Z"}}},
				{"sha": "c1", "commit": map[string]any{"message": "init", "author": map[string]any{"name": "Bo", "email": "bo@example.com", "date": "2025-01-01T00:00:00Z"}}},
			})
		})
		mux.HandleFunc("GET /repos/acme/web/commits/c2", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"sha": "c2", "stats": map[string]any{"additions": 5, "deletions": 2, "total": 7}})
		})
		mux.HandleFunc("GET /repos/acme/web/commits/c1", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		server = httptest.NewServer(mux)

		var err error
		fetcher, err = github.New(github.Config{
			Token:             "secret",
			BaseURL:           server.URL,
			RequestsPerSecond: -1,
		})
		Expect(err).NotTo(HaveOccurred())
		ref = source.Ref{Kind: source.KindGitHub, Owner: "acme", Name: "web"}
	})

	AfterEach(func() {
		server.Close()
	})

	It("reads repository metadata with the token", func() {
		info, err := fetcher.Info(context.Background(), ref)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.FullName).To(Equal("acme/web"))
		Expect(info.Language).To(Equal("Python"))
		Expect(info.DefaultBranch).To(Equal("main"))
		Expect(authHdr).To(Equal("Bearer secret"))
	})

	It("fetches filtered files and skips failing blobs", func() {
		files, err := fetcher.Files(context.Background(), ref)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(HaveLen(2))

		Expect(files[0].Path).To(Equal("src/auth.py"))
		Expect(files[0].Language).To(Equal("python"))
		Expect(files[0].Content).To(ContainSubstring("def login"))
		Expect(files[1].Path).To(Equal("README.md"))
		Expect(files[1].Content).To(Equal("# web\n"))
	})

	It("lists commits with stats when available", func() {
		commits, err := fetcher.Commits(context.Background(), ref, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(HaveLen(2))
		Expect(commits[0].SHA).To(Equal("c2"))
		Expect(commits[0].Author).To(Equal("Ana"))
		Expect(commits[0].Additions).To(Equal(5))
		Expect(commits[0].Deletions).To(Equal(2))
		Expect(commits[0].Date.Year()).To(Equal(2025))
		Expect(commits[1].Additions).To(BeZero())
	})

	It("caps commits at the limit", func() {
		commits, err := fetcher.Commits(context.Background(), ref, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(HaveLen(1))
	})

	It("reports API errors with the status", func() {
		_, err := fetcher.Info(context.Background(), source.Ref{Owner: "acme", Name: "missing"})
		Expect(err).To(MatchError(ContainSubstring("404")))
	})
})
