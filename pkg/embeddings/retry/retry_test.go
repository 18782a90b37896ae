package retry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/embeddings/retry"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

type flaky struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (f *flaky) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return []float32{1}, nil
}

func (f *flaky) Close() error { return nil }

var _ = Describe("Embedder", func() {
	It("retries until the inner embedder succeeds", func() {
		inner := &flaky{failures: 2, err: vector.ErrEmbedding}
		e := retry.New(inner, 3, time.Millisecond)

		v, err := e.Embed(context.Background(), "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{1}))
		Expect(inner.calls.Load()).To(Equal(int32(3)))
	})

	It("returns the last error when retries run out", func() {
		inner := &flaky{failures: 10, err: vector.ErrEmbedding}
		e := retry.New(inner, 2, time.Millisecond)

		_, err := e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(inner.calls.Load()).To(Equal(int32(3)))
	})

	It("does not retry deadline errors", func() {
		inner := &flaky{failures: 10, err: errors.Join(vector.ErrEmbedding, context.DeadlineExceeded)}
		e := retry.New(inner, 5, time.Millisecond)

		_, err := e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(inner.calls.Load()).To(Equal(int32(1)))
	})
})
