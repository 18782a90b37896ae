package ingest_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/ingest"
)

// blockingRunner records runs and blocks each one until released or cancelled.
type blockingRunner struct {
	mu        sync.Mutex
	started   []string
	finished  []string
	cancelled []string
	release   chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, id string) error {
	r.mu.Lock()
	r.started = append(r.started, id)
	r.mu.Unlock()

	select {
	case <-r.release:
		r.mu.Lock()
		r.finished = append(r.finished, id)
		r.mu.Unlock()
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		r.cancelled = append(r.cancelled, id)
		r.mu.Unlock()
		return ctx.Err()
	}
}

func (r *blockingRunner) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func (r *blockingRunner) Finished() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.finished...)
}

func (r *blockingRunner) Cancelled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancelled...)
}

var _ = Describe("Queue", func() {
	var (
		runner *blockingRunner
		q      *ingest.Queue
	)

	BeforeEach(func() {
		runner = newBlockingRunner()
		var err error
		q, err = ingest.NewQueue(ingest.QueueConfig{Runner: runner, Workers: 1, QueueSize: 2})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})

	It("requires a runner", func() {
		_, err := ingest.NewQueue(ingest.QueueConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("runs enqueued jobs in the background", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(Equal([]string{"r1"}))
		Expect(q.InFlight("r1")).To(BeTrue())

		close(runner.release)
		Eventually(runner.Finished).Should(Equal([]string{"r1"}))
		Eventually(func() bool { return q.InFlight("r1") }).Should(BeFalse())
	})

	It("refuses a second job for the same repository", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Expect(q.Enqueue("r1")).To(MatchError(ingest.ErrAlreadyQueued))
		Expect(q.Enqueue("r2")).To(Succeed())
	})

	It("allows a new job once the previous one finished", func() {
		close(runner.release)
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(func() bool { return q.InFlight("r1") }).Should(BeFalse())
		Expect(q.Enqueue("r1")).To(Succeed())
	})

	It("reports a full queue", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))

		Expect(q.Enqueue("r2")).To(Succeed())
		Expect(q.Enqueue("r3")).To(Succeed())
		Expect(q.Enqueue("r4")).To(MatchError(ingest.ErrQueueFull))
		Expect(q.InFlight("r4")).To(BeFalse())
	})

	It("cancels a running job", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))

		Expect(q.Cancel("r1")).To(BeTrue())
		Eventually(runner.Cancelled).Should(Equal([]string{"r1"}))
		Expect(q.Cancel("r1")).To(BeFalse())
	})

	It("waits for a running job to return when stopped", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))

		stopped, err := q.Stop(context.Background(), "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeTrue())
		Expect(runner.Cancelled()).To(Equal([]string{"r1"}))
		Expect(q.InFlight("r1")).To(BeFalse())
	})

	It("stops a queued job without waiting for the worker", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))
		Expect(q.Enqueue("r2")).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		stopped, err := q.Stop(ctx, "r2")
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeTrue())

		stopped, err = q.Stop(ctx, "r3")
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeFalse())

		close(runner.release)
		Consistently(runner.Started, 50*time.Millisecond).Should(Equal([]string{"r1"}))
	})

	It("skips a job cancelled while queued", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))
		Expect(q.Enqueue("r2")).To(Succeed())
		Expect(q.Cancel("r2")).To(BeTrue())

		close(runner.release)
		Eventually(runner.Finished).Should(Equal([]string{"r1"}))
		Consistently(runner.Started, 50*time.Millisecond).Should(Equal([]string{"r1"}))
	})

	It("drains queued jobs on close and rejects new ones", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Expect(q.Enqueue("r2")).To(Succeed())
		close(runner.release)

		Expect(q.Close(context.Background())).To(Succeed())
		Expect(runner.Finished()).To(ConsistOf("r1", "r2"))
		Expect(q.Enqueue("r3")).To(MatchError(ingest.ErrQueueClosed))
	})

	It("cancels running jobs when the close deadline passes", func() {
		Expect(q.Enqueue("r1")).To(Succeed())
		Eventually(runner.Started).Should(HaveLen(1))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(q.Close(ctx)).To(MatchError(context.DeadlineExceeded))
		Expect(runner.Cancelled()).To(Equal([]string{"r1"}))
	})
})
