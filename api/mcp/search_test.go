package mcp

import (
	"context"
	"errors"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/index"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
	testutils "github.com/papercomputeco/reposcope/pkg/utils/test"
	"github.com/papercomputeco/reposcope/pkg/vector"
	vectormem "github.com/papercomputeco/reposcope/pkg/vector/inmemory"
)

type stubAsker struct {
	err      error
	answer   *synth.Answer
	question string
}

func (a *stubAsker) Ask(_ context.Context, _ string, question string) (*storage.Query, *synth.Answer, error) {
	a.question = question
	if a.err != nil {
		return nil, nil, a.err
	}
	return &storage.Query{ID: "q1"}, a.answer, nil
}

var _ = Describe("Tools", func() {
	var (
		ctx    context.Context
		server *Server
		asker  *stubAsker
	)

	BeforeEach(func() {
		ctx = context.Background()

		idx, err := index.New(index.Config{Driver: vectormem.NewDriver(), Embedder: testutils.NewMockEmbedder()})
		Expect(err).NotTo(HaveOccurred())
		_, err = idx.AddDocument(ctx, index.DocumentID("repo1", "auth.py"), "def login(): pass", vector.Metadata{Path: "auth.py"})
		Expect(err).NotTo(HaveOccurred())

		asker = &stubAsker{answer: &synth.Answer{Answer: "It checks a password.", Confidence: 0.8, Sources: []string{"auth.py"}}}
		server, err = NewServer(Config{Searcher: idx, Asker: asker, Logger: reslog.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("search_repository", func() {
		It("returns structured results and a JSON text block", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "login", RepositoryID: "repo1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Path).To(Equal("auth.py"))

			text, ok := res.Content[0].(*gomcp.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring(`"path":"auth.py"`))
		})

		It("reports a blank query as a tool error", func() {
			res, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})

	Describe("ask_repository", func() {
		It("returns the answer with sources", func() {
			res, out, err := server.handleAsk(ctx, nil, AskInput{RepositoryID: "repo1", Question: "How does login work?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.QueryID).To(Equal("q1"))
			Expect(out.Sources).To(Equal([]string{"auth.py"}))
			Expect(asker.question).To(Equal("How does login work?"))
		})

		It("requires a repository id", func() {
			res, _, err := server.handleAsk(ctx, nil, AskInput{Question: "why?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})

		It("reports ask failures as tool errors", func() {
			asker.err = errors.New("repository is still being processed")
			res, _, err := server.handleAsk(ctx, nil, AskInput{RepositoryID: "repo1", Question: "why?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(res.Content[0].(*gomcp.TextContent).Text).To(ContainSubstring("still being processed"))
		})
	})
})
