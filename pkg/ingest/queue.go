package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
)

var (
	defaultNumWorkers uint = 2
	defaultQueueSize  uint = 64
)

var (
	// ErrAlreadyQueued is returned when the repository already has an
	// ingestion queued or running.
	ErrAlreadyQueued = errors.New("ingestion already in flight")

	// ErrQueueFull is returned when the job buffer is at capacity.
	ErrQueueFull = errors.New("ingestion queue full")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("ingestion queue closed")
)

// Runner executes one ingestion job.
type Runner interface {
	Run(ctx context.Context, repositoryID string) error
}

// QueueConfig is the configuration of the ingestion worker pool.
type QueueConfig struct {
	Runner Runner

	// Workers is the number of background workers (defaults to 2).
	Workers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	Logger *slog.Logger
}

type job struct {
	repositoryID string
	ctx          context.Context
	slot         *slot
}

// slot tracks one queued or running job. done is closed once a worker has
// finished with the job, whether it ran or was skipped.
type slot struct {
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Queue runs ingestion jobs on a fixed pool of workers with at most one
// job per repository queued or running at a time.
type Queue struct {
	runner Runner
	jobs   chan job
	group  *errgroup.Group
	base   context.Context
	stop   context.CancelFunc
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	inflight map[string]*slot
}

// NewQueue creates a Queue and starts its workers.
func NewQueue(c QueueConfig) (*Queue, error) {
	if c.Runner == nil {
		return nil, errors.New("ingest queue requires a runner")
	}
	if c.Workers == 0 {
		c.Workers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Workers > uint(math.MaxInt) {
		return nil, fmt.Errorf("Workers %d exceeds max int", c.Workers)
	}
	if c.Logger == nil {
		c.Logger = reslog.Nop()
	}

	base, stop := context.WithCancel(context.Background())
	q := &Queue{
		runner:   c.Runner,
		jobs:     make(chan job, c.QueueSize),
		group:    &errgroup.Group{},
		base:     base,
		stop:     stop,
		logger:   c.Logger,
		inflight: make(map[string]*slot),
	}

	for i := range c.Workers {
		q.group.Go(func() error {
			q.worker(i)
			return nil
		})
	}
	return q, nil
}

// Enqueue submits an ingestion for repositoryID and returns immediately.
func (q *Queue) Enqueue(repositoryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.inflight[repositoryID]; ok {
		return ErrAlreadyQueued
	}

	ctx, cancel := context.WithCancel(q.base)
	sl := &slot{cancel: cancel, done: make(chan struct{})}
	select {
	case q.jobs <- job{repositoryID: repositoryID, ctx: ctx, slot: sl}:
		q.inflight[repositoryID] = sl
		q.logger.Debug("ingestion queued", "repository_id", repositoryID)
		return nil
	default:
		cancel()
		q.logger.Error("ingestion not queued, queue full", "repository_id", repositoryID)
		return ErrQueueFull
	}
}

// Cancel stops the queued or running ingestion of repositoryID. It reports
// whether there was one.
func (q *Queue) Cancel(repositoryID string) bool {
	_, ok := q.cancel(repositoryID)
	return ok
}

// Stop cancels the ingestion of repositoryID like Cancel and, when a worker
// is already running it, waits for the run to return. A queued job that has
// not started is never waited on.
func (q *Queue) Stop(ctx context.Context, repositoryID string) (bool, error) {
	wait, ok := q.cancel(repositoryID)
	if wait == nil {
		return ok, nil
	}

	select {
	case <-wait:
		return ok, nil
	case <-ctx.Done():
		return ok, ctx.Err()
	}
}

// cancel removes the slot of repositoryID and returns its done channel when
// the job is running.
func (q *Queue) cancel(repositoryID string) (<-chan struct{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sl, ok := q.inflight[repositoryID]
	if !ok {
		return nil, false
	}
	sl.cancel()
	delete(q.inflight, repositoryID)
	if sl.running {
		return sl.done, true
	}
	return nil, true
}

// InFlight reports whether repositoryID is queued or running.
func (q *Queue) InFlight(repositoryID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inflight[repositoryID]
	return ok
}

// Close stops accepting jobs and waits for queued jobs to drain. When ctx
// ends first, running jobs are cancelled and Close waits for them to return.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.stop()
		return nil
	case <-ctx.Done():
		q.stop()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker(id uint) {
	q.logger.Debug("ingest worker started", "worker_id", id)

	for j := range q.jobs {
		q.process(j)
	}

	q.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (q *Queue) process(j job) {
	defer q.finish(j)

	if !q.start(j) {
		q.logger.Info("skipping cancelled ingestion", "repository_id", j.repositoryID)
		return
	}

	if err := q.runner.Run(j.ctx, j.repositoryID); err != nil {
		q.logger.Error("ingestion failed", "repository_id", j.repositoryID, "error", err)
		return
	}
	q.logger.Info("ingestion finished", "repository_id", j.repositoryID)
}

// start marks the job running. Cancellation takes the same lock, so a job
// cancelled before start is never run.
func (q *Queue) start(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j.ctx.Err() != nil {
		return false
	}
	j.slot.running = true
	return true
}

// finish releases the repository slot unless a newer job already took it.
func (q *Queue) finish(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight[j.repositoryID] == j.slot {
		j.slot.cancel()
		delete(q.inflight, j.repositoryID)
	}
	close(j.slot.done)
}
