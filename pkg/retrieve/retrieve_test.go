package retrieve_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/embeddings/local"
	"github.com/papercomputeco/reposcope/pkg/index"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	testutils "github.com/papercomputeco/reposcope/pkg/utils/test"
	"github.com/papercomputeco/reposcope/pkg/vector"
	"github.com/papercomputeco/reposcope/pkg/vector/inmemory"
)

var _ = Describe("Retriever", func() {
	var (
		ctx context.Context
		idx *index.Index
		r   *retrieve.Retriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		idx, err = index.New(index.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: local.NewEmbedder(1024),
		})
		Expect(err).NotTo(HaveOccurred())
		r = retrieve.New(idx, 0)
	})

	addFile := func(repo, path, content string) {
		_, err := idx.AddDocument(ctx, index.DocumentID(repo, path), content, vector.Metadata{Path: path})
		Expect(err).NotTo(HaveOccurred())
	}

	It("defaults to three results", func() {
		Expect(r.TopK()).To(Equal(3))
	})

	It("returns an empty list when nothing is indexed", func() {
		snippets, err := r.GetRelevantContext(ctx, "anything", "repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(BeEmpty())
	})

	It("returns a single snippet when one chunk is indexed", func() {
		addFile("repo", "auth.py", "def login(user, password):\n    return check(user, password)")

		snippets, err := r.GetRelevantContext(ctx, "how does login work?", "repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(Equal([]retrieve.Snippet{{
			Path:    "auth.py",
			Content: "def login(user, password):\n    return check(user, password)",
		}}))
	})

	It("never returns more than three snippets", func() {
		for i := range 6 {
			addFile("repo", fmt.Sprintf("f%d.go", i), fmt.Sprintf("func handler%d() {}", i))
		}

		snippets, err := r.GetRelevantContext(ctx, "func handler", "repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(HaveLen(3))
	})

	It("ranks the closest file first", func() {
		addFile("repo", "db.go", "open database connection pool")
		addFile("repo", "auth.go", "login user password session")
		addFile("repo", "http.go", "serve http routes")

		snippets, err := r.GetRelevantContext(ctx, "user login password", "repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).NotTo(BeEmpty())
		Expect(snippets[0].Path).To(Equal("auth.go"))
	})

	It("scopes results to the repository", func() {
		addFile("repo1", "a.go", "shared words here")
		addFile("repo2", "b.go", "shared words here")

		snippets, err := r.GetRelevantContext(ctx, "shared words", "repo2")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(HaveLen(1))
		Expect(snippets[0].Path).To(Equal("b.go"))
	})

	It("surfaces embedding failures so callers can degrade", func() {
		emb := testutils.NewMockEmbedder()
		emb.FailOn = "broken"
		failing, err := index.New(index.Config{Driver: inmemory.NewDriver(), Embedder: emb})
		Expect(err).NotTo(HaveOccurred())

		_, err = retrieve.New(failing, 3).GetRelevantContext(ctx, "broken", "repo")
		Expect(retrieve.IsEmbeddingFailure(err)).To(BeTrue())
		Expect(retrieve.IsEmbeddingFailure(errors.New("disk"))).To(BeFalse())
	})
})
