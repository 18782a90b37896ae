package stream_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/stream"
)

var _ = Describe("Tokenize", func() {
	It("keeps whitespace runs as tokens", func() {
		Expect(stream.Tokenize("hello world")).To(Equal([]string{"hello", " ", "world"}))
		Expect(stream.Tokenize("a  \n b")).To(Equal([]string{"a", "  \n ", "b"}))
	})

	It("handles leading and trailing whitespace", func() {
		Expect(stream.Tokenize("  hi\n")).To(Equal([]string{"  ", "hi", "\n"}))
	})

	It("returns nothing for an empty string", func() {
		Expect(stream.Tokenize("")).To(BeEmpty())
	})

	It("treats unicode spaces as whitespace", func() {
		Expect(stream.Tokenize("héllo wörld")).To(Equal([]string{"héllo", " ", "wörld"}))
	})

	DescribeTable("reconstructs the input with no empty tokens",
		func(s string) {
			tokens := stream.Tokenize(s)
			Expect(strings.Join(tokens, "")).To(Equal(s))
			for _, t := range tokens {
				Expect(t).NotTo(BeEmpty())
			}
		},
		Entry("plain", "The login function checks the password hash."),
		Entry("code", "func main() {\n\tfmt.Println(\"x\")\n}\n"),
		Entry("only spaces", "   \t\n"),
		Entry("single word", "word"),
		Entry("markdown", "## Title\n\n- item one\n- item two\n"),
	)
})
