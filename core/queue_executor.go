package core

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// BoundedQueueExecutor schedules jobs on a dispatch pool while capping the
// number of simultaneously executing jobs at maxConcurrent. The executor
// owns no goroutines: it admits up to maxConcurrent drainers into the pool
// and each drainer works the FIFO admission queue until it runs dry.
//
// Ordering: jobs are admitted in submission order and executed whenever a
// slot is free; there is no cross-job ordering guarantee beyond that. A
// maxConcurrent of 1 degrades to strictly serial execution, though racing
// enqueues from multiple goroutines have platform-defined admission order.
type BoundedQueueExecutor struct {
	name          string
	maxConcurrent int
	qos           QoS
	pool          *DispatchPool

	queue JobQueue

	mu     sync.Mutex
	active int // drainers admitted to the pool; never exceeds maxConcurrent

	closed atomic.Bool
	ref    ExecutorRef

	running  atomic.Int32
	rejected atomic.Int64

	panicHandler PanicHandler
	metrics      Metrics
	logger       *slog.Logger
}

// NewBoundedQueueExecutor creates a queue executor on pool. A maxConcurrent
// below 1 selects the platform maximum (GOMAXPROCS); there is no other
// special default. Construction cannot fail.
func NewBoundedQueueExecutor(label string, maxConcurrent int, qos QoS, pool *DispatchPool) *BoundedQueueExecutor {
	return NewBoundedQueueExecutorWithConfig(label, maxConcurrent, qos, pool, DefaultExecutorConfig())
}

// NewBoundedQueueExecutorWithConfig creates a queue executor with explicit
// ambient collaborators.
func NewBoundedQueueExecutorWithConfig(label string, maxConcurrent int, qos QoS, pool *DispatchPool, config *ExecutorConfig) *BoundedQueueExecutor {
	if maxConcurrent < 1 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	cfg := config.withDefaults()
	e := &BoundedQueueExecutor{
		name:          label,
		maxConcurrent: maxConcurrent,
		qos:           qos,
		pool:          pool,
		queue:         NewFIFOJobQueue(),
		panicHandler:  cfg.PanicHandler,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	e.ref = newExecutorRef(e)
	return e
}

// Name returns the executor's debug label. The label has no behavioral effect.
func (e *BoundedQueueExecutor) Name() string {
	return e.name
}

// Ref returns the canonical identity handle for this executor.
func (e *BoundedQueueExecutor) Ref() ExecutorRef {
	return e.ref
}

// MaxConcurrent returns the immutable concurrency cap.
func (e *BoundedQueueExecutor) MaxConcurrent() int {
	return e.maxConcurrent
}

// QoS returns the immutable priority class jobs are admitted under.
func (e *BoundedQueueExecutor) QoS() QoS {
	return e.qos
}

// Enqueue admits job to the queue and returns immediately. It never blocks
// and never fails; jobs enqueued after Close are dropped.
func (e *BoundedQueueExecutor) Enqueue(job Job) {
	if e.closed.Load() {
		e.reject("closed")
		return
	}

	e.queue.Push(job, e.qos)
	e.metrics.RecordQueueDepth(e.name, e.queue.Len())
	e.maybeStartDrainer()
}

// EnqueueAfter admits job after delay, re-entering the normal enqueue path.
func (e *BoundedQueueExecutor) EnqueueAfter(job Job, delay time.Duration) {
	if e.closed.Load() {
		e.reject("closed")
		return
	}
	time.AfterFunc(delay, func() {
		e.Enqueue(job)
	})
}

// maybeStartDrainer admits one more drainer to the pool if a slot is free.
// The drainer-exit check in drain holds the same mutex, so a job pushed
// while the last drainer is exiting is either seen by that drainer's
// emptiness re-check or gets a fresh drainer here.
func (e *BoundedQueueExecutor) maybeStartDrainer() {
	e.mu.Lock()
	if e.active >= e.maxConcurrent {
		e.mu.Unlock()
		return
	}
	e.active++
	e.mu.Unlock()

	e.pool.Post(e.drain, e.qos)
}

// drain works the admission queue from a pool worker until it runs dry.
func (e *BoundedQueueExecutor) drain(ctx context.Context) {
	jobCtx := withExecutorRef(ctx, e.ref)
	for {
		item, ok := e.queue.Pop()
		if !ok {
			e.mu.Lock()
			if e.queue.IsEmpty() {
				e.active--
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			continue
		}
		e.runJob(jobCtx, item.Job)
	}
}

func (e *BoundedQueueExecutor) runJob(ctx context.Context, job Job) {
	start := time.Now()
	e.running.Add(1)
	defer func() {
		e.running.Add(-1)
		if r := recover(); r != nil {
			e.metrics.RecordJobPanic(e.name, r)
			e.panicHandler.HandlePanic(ctx, e.name, -1, r, debug.Stack())
		}
	}()
	job(ctx)
	e.metrics.RecordJobDuration(e.name, e.qos, time.Since(start))
}

func (e *BoundedQueueExecutor) reject(reason string) {
	e.rejected.Add(1)
	e.metrics.RecordJobRejected(e.name, reason)
	e.logger.Warn("job rejected", "executor", e.name, "reason", reason)
}

// Close stops accepting jobs and discards anything still queued. Jobs
// already picked up by a drainer run to completion.
func (e *BoundedQueueExecutor) Close() {
	e.closed.Store(true)
	e.queue.Clear()
}

// IsClosed returns true if the executor has been closed.
func (e *BoundedQueueExecutor) IsClosed() bool {
	return e.closed.Load()
}

// WaitIdle blocks until all jobs admitted before the call have completed.
// With maxConcurrent > 1 the barrier may overtake jobs still executing in
// other slots, so WaitIdle waits for the queue and all slots to drain.
func (e *BoundedQueueExecutor) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		e.mu.Lock()
		idle := e.active == 0 && e.queue.IsEmpty()
		e.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats returns a point-in-time snapshot of the executor.
func (e *BoundedQueueExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		Name:     e.name,
		Type:     "bounded_queue",
		Pending:  e.queue.Len(),
		Running:  int(e.running.Load()),
		Rejected: e.rejected.Load(),
		Closed:   e.closed.Load(),
	}
}
