package cache_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/embeddings/cache"
	testutils "github.com/papercomputeco/reposcope/pkg/utils/test"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var inner *testutils.MockEmbedder

	BeforeEach(func() {
		inner = testutils.NewMockEmbedder()
		inner.Embeddings["a"] = []float32{1, 0}
		inner.Embeddings["b"] = []float32{0, 1}
	})

	It("rejects a non-positive size", func() {
		_, err := cache.New(inner, 0)
		Expect(err).To(HaveOccurred())
	})

	It("serves repeated texts from the cache", func() {
		e, err := cache.New(inner, 8)
		Expect(err).NotTo(HaveOccurred())

		for range 3 {
			v, err := e.Embed(context.Background(), "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal([]float32{1, 0}))
		}
		Expect(inner.Calls()).To(Equal(1))
		Expect(e.Len()).To(Equal(1))
	})

	It("does not let callers mutate cached vectors", func() {
		e, err := cache.New(inner, 8)
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		v[0] = 42

		again, err := e.Embed(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal([]float32{1, 0}))
	})

	It("evicts the least recently used entry", func() {
		e, err := cache.New(inner, 1)
		Expect(err).NotTo(HaveOccurred())

		_, _ = e.Embed(context.Background(), "a")
		_, _ = e.Embed(context.Background(), "b")
		_, _ = e.Embed(context.Background(), "a")
		Expect(inner.Calls()).To(Equal(3))
	})

	It("never caches failures", func() {
		inner.FailOn = "a"
		e, err := cache.New(inner, 8)
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "a")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(e.Len()).To(BeZero())
	})
})
