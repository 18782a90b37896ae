package embeddingutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/embeddings/cache"
	"github.com/papercomputeco/reposcope/pkg/embeddings/local"
	"github.com/papercomputeco/reposcope/pkg/embeddings/ollama"
	"github.com/papercomputeco/reposcope/pkg/embeddings/retry"
	embeddingutils "github.com/papercomputeco/reposcope/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	It("builds a bare local embedder", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "local", Dimensions: 32, Retries: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&local.Embedder{}))
	})

	It("wraps remote providers with retry and cache", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama", Retries: 2, CacheSize: 16})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&cache.Embedder{}))
	})

	It("returns the plain provider without wrappers", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
		Expect(e).NotTo(BeAssignableToTypeOf(&retry.Embedder{}))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "gemini"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
