package synth_test

import (
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

var _ = Describe("Prompts", func() {
	It("lists every snippet in the answer prompt", func() {
		p := synth.AnswerPrompt("how does login work?", []retrieve.Snippet{
			{Path: "auth.py", Content: "def login(user, password):"},
			{Path: "db.py", Content: "def connect():"},
		}, "acme/web")

		Expect(p).To(ContainSubstring("Repository context: acme/web"))
		Expect(p).To(ContainSubstring("Question: how does login work?"))
		Expect(p).To(ContainSubstring("File: auth.py\ndef login(user, password):\n\nFile: db.py"))
	})

	It("includes commit stats", func() {
		p := synth.CommitPrompt(synth.Commit{Message: "fix race", Additions: 3, Deletions: 1})
		Expect(p).To(ContainSubstring("Commit message: fix race"))
		Expect(p).To(ContainSubstring("Lines added: 3"))
		Expect(p).To(ContainSubstring("Lines deleted: 1"))
	})

	It("samples at most ten files of at most 500 characters", func() {
		files := make([]synth.File, 12)
		for i := range files {
			files[i] = synth.File{Path: fmt.Sprintf("f%02d.go", i), Content: strings.Repeat("x", 600)}
		}

		p := synth.AnalysisPrompt(files)
		Expect(p).To(ContainSubstring("f11.go"))
		Expect(p).NotTo(ContainSubstring("f10.go:\n"))
		Expect(p).To(ContainSubstring("f09.go:\n" + strings.Repeat("x", 500) + "\n"))
		Expect(p).NotTo(ContainSubstring(strings.Repeat("x", 501)))
	})
})

var _ = Describe("ParseJSON", func() {
	It("extracts an object wrapped in a fence", func() {
		var a synth.Answer
		Expect(synth.ParseJSON("```json\n{\"answer\":\"ok\",\"confidence\":0.5,\"sources\":[\"a.go\"]}\n```", &a)).To(Succeed())
		Expect(a.Answer).To(Equal("ok"))
		Expect(a.Sources).To(Equal([]string{"a.go"}))
	})

	It("wraps decode failures in ErrSynthesis", func() {
		var a synth.Answer
		err := synth.ParseJSON("not json", &a)
		Expect(errors.Is(err, synth.ErrSynthesis)).To(BeTrue())
	})
})

var _ = Describe("Answer.Normalize", func() {
	It("clamps confidence and fills sources", func() {
		a := synth.Answer{Confidence: 3}
		a.Normalize()
		Expect(a.Confidence).To(Equal(1.0))
		Expect(a.Sources).NotTo(BeNil())

		a.Confidence = -1
		a.Normalize()
		Expect(a.Confidence).To(BeZero())
	})
})
