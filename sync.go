package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// syncJob is one write to propagate to the store after a local commit.
type syncJob struct {
	op     string
	userID string
	run    func(ctx context.Context) error
}

// syncQueue propagates committed session changes to the store on a single
// worker goroutine, in the order they were enqueued. A job that still fails
// after the last attempt is logged and dropped; local state is never rolled
// back.
type syncQueue struct {
	jobs     chan syncJob
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
}

func newSyncQueue(attempts int, backoff time.Duration) *syncQueue {
	if attempts < 1 {
		attempts = 1
	}
	return &syncQueue{
		jobs:     make(chan syncJob, 256),
		attempts: attempts,
		backoff:  backoff,
		timeout:  10 * time.Second,
		done:     make(chan struct{}),
	}
}

// start launches the worker. Call once.
func (q *syncQueue) start() {
	go func() {
		defer close(q.done)
		for job := range q.jobs {
			q.runJob(job)
			q.pending.Done()
		}
	}()
}

func (q *syncQueue) runJob(job syncJob) {
	var err error
	for attempt := 1; attempt <= q.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err = job.run(ctx)
		cancel()
		if err == nil {
			return
		}
		if attempt < q.attempts {
			time.Sleep(q.backoff * time.Duration(attempt))
		}
	}
	log.Warn().Err(err).
		Str("op", job.op).
		Str("user_id", job.userID).
		Int("attempts", q.attempts).
		Msg("[sync] propagation failed, keeping local state")
}

// enqueue schedules job. After close it logs and drops the job.
func (q *syncQueue) enqueue(job syncJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Warn().Str("op", job.op).Str("user_id", job.userID).Msg("[sync] queue closed, dropping job")
		return
	}
	q.pending.Add(1)
	q.jobs <- job
}

// flush blocks until every job enqueued so far has finished.
func (q *syncQueue) flush() {
	q.pending.Wait()
}

// close stops accepting jobs and waits for the worker to drain the queue.
func (q *syncQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
}
