package stub_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
	"github.com/papercomputeco/reposcope/pkg/synth/stub"
)

var _ = Describe("Provider", func() {
	var (
		ctx context.Context
		p   *stub.Provider
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = stub.New()
	})

	It("satisfies synth.Provider", func() {
		var _ synth.Provider = p
		Expect(p.Name()).To(Equal("stub"))
	})

	It("cites unique context paths with zero confidence", func() {
		a, err := p.Synthesize(ctx, "q", []retrieve.Snippet{
			{Path: "auth.py"}, {Path: "auth.py"}, {Path: "db.py"},
		}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Sources).To(Equal([]string{"auth.py", "db.py"}))
		Expect(a.Confidence).To(BeZero())
		Expect(a.Answer).To(ContainSubstring("auth.py"))
	})

	It("answers without context", func() {
		a, err := p.Synthesize(ctx, "q", nil, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Sources).To(BeEmpty())
		Expect(a.Answer).NotTo(BeEmpty())
	})

	It("grades commit impact by size", func() {
		s, err := p.SummarizeCommit(ctx, synth.Commit{Message: "add parser\n\nlong body", Additions: 40, Deletions: 20})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Summary).To(Equal("add parser"))
		Expect(s.Impact).To(Equal("Medium"))

		s, err = p.SummarizeCommit(ctx, synth.Commit{Message: "typo", Additions: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Impact).To(Equal("Low"))
	})

	It("picks the most common language", func() {
		a, err := p.AnalyzeRepository(ctx, []synth.File{
			{Path: "a.go", Language: "go"},
			{Path: "b.go", Language: "go"},
			{Path: "c.py", Language: "python"},
			{Path: "README"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.PrimaryLanguage).To(Equal("go"))
		Expect(a.Insights).To(Equal([]string{"2 go files", "1 python files"}))
		Expect(a.Summary).To(ContainSubstring("4 files"))
	})
})
