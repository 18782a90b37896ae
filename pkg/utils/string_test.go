package utils

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("leaves strings within the limit alone", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("cuts and marks longer strings", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is a ..."))
	})

	It("never splits a multi-byte character", func() {
		out := Truncate("héllo wörld", 2)
		Expect(out).To(Equal("h..."))
		Expect(utf8.ValidString(Truncate("日本語のテキスト", 4))).To(BeTrue())
	})

	It("treats a negative limit as zero", func() {
		Expect(Truncate("abc", -1)).To(Equal("..."))
	})
})

var _ = Describe("BuildInfo", func() {
	It("prefers stamped values", func() {
		DeferCleanup(func(v, s, b string) { Version, Sha, Buildtime = v, s, b }, Version, Sha, Buildtime)
		Version, Sha, Buildtime = "v1.2.3", "abc123", "2026-01-01"

		v, s, b := BuildInfo()
		Expect(v).To(Equal("v1.2.3"))
		Expect(s).To(Equal("abc123"))
		Expect(b).To(Equal("2026-01-01"))
	})

	It("always reports something", func() {
		v, s, b := BuildInfo()
		Expect(v).NotTo(BeEmpty())
		Expect(s).NotTo(BeEmpty())
		Expect(b).NotTo(BeEmpty())
	})
})
