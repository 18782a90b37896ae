package mcp

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/index"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/storage"
	testutils "github.com/papercomputeco/reposcope/pkg/utils/test"
	vectormem "github.com/papercomputeco/reposcope/pkg/vector/inmemory"
)

type stubLister struct {
	repos []*storage.Repository
	err   error
}

func (l stubLister) ListRepositories(context.Context) ([]*storage.Repository, error) {
	return l.repos, l.err
}

var _ = Describe("list_repositories", func() {
	newServer := func(l Lister) *Server {
		idx, err := index.New(index.Config{Driver: vectormem.NewDriver(), Embedder: testutils.NewMockEmbedder()})
		Expect(err).NotTo(HaveOccurred())
		s, err := NewServer(Config{Searcher: idx, Asker: &stubAsker{}, Lister: l, Logger: reslog.Nop()})
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	repos := []*storage.Repository{
		{ID: "r1", FullName: "acme/api", Source: storage.SourceGitHub, Status: storage.StatusReady, FileCount: 12},
		{ID: "r2", FullName: "acme/web", Source: storage.SourceGitHub, Status: storage.StatusError},
	}

	It("lists every repository", func() {
		s := newServer(stubLister{repos: repos})
		res, out, err := s.handleList(context.Background(), nil, ListInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeFalse())
		Expect(out.Count).To(Equal(2))
		Expect(out.Repositories[0]).To(Equal(RepositorySummary{
			ID: "r1", FullName: "acme/api", Source: string(storage.SourceGitHub), Status: string(storage.StatusReady), FileCount: 12,
		}))
	})

	It("filters by status", func() {
		s := newServer(stubLister{repos: repos})
		_, out, err := s.handleList(context.Background(), nil, ListInput{Status: string(storage.StatusReady)})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Count).To(Equal(1))
		Expect(out.Repositories[0].ID).To(Equal("r1"))
	})

	It("reports storage failures as tool errors", func() {
		s := newServer(stubLister{err: errors.New("db down")})
		res, _, err := s.handleList(context.Background(), nil, ListInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeTrue())
	})
})
