package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ThreadAffinityExecutor pins every job enqueued on it to one dedicated,
// long-lived OS thread. The worker goroutine locks itself to its thread and
// parks in a run loop; Enqueue hands jobs to that loop and wakes it.
//
// Use cases:
// 1. CGO libraries keyed on thread identity / thread-local storage
// 2. Real-time callback feeds (audio/MIDI-style) that cannot tolerate
//    migration across cores
// 3. Simulating a main/UI thread
//
// Key differences from a serial PoolExecutor:
// - Serial PoolExecutor: jobs execute sequentially but may land on different
//   pool workers between drains
// - ThreadAffinityExecutor: jobs execute sequentially AND always on the same
//   dedicated OS thread
type ThreadAffinityExecutor struct {
	name string

	// loop and threadID are written exactly once by the worker goroutine
	// before it signals ready, and are read-only afterwards. The readiness
	// handshake in the constructor is what makes the lock-free reads on the
	// enqueue path safe.
	loop     *runLoop
	threadID uint64

	// ready is the one-shot readiness gate: closed by the worker after it
	// has captured its run loop, awaited by the constructor.
	ready chan struct{}

	ref ExecutorRef

	// cancelled is the cooperative teardown flag. It never preempts an
	// in-flight job; it only stops new admissions.
	cancelled atomic.Bool
	stopOnce  sync.Once

	pending  atomic.Int64
	running  atomic.Int32
	rejected atomic.Int64

	panicHandler PanicHandler
	metrics      Metrics
	logger       *slog.Logger
}

// NewThreadAffinityExecutor creates the executor and blocks the calling
// goroutine until the dedicated worker thread is parked in its run loop and
// ready to accept jobs. The block is bounded by OS thread scheduling, never
// by job execution.
func NewThreadAffinityExecutor(name string) *ThreadAffinityExecutor {
	return NewThreadAffinityExecutorWithConfig(name, DefaultExecutorConfig())
}

// NewThreadAffinityExecutorWithConfig creates the executor with explicit
// ambient collaborators.
func NewThreadAffinityExecutorWithConfig(name string, config *ExecutorConfig) *ThreadAffinityExecutor {
	cfg := config.withDefaults()
	e := &ThreadAffinityExecutor{
		name:         name,
		ready:        make(chan struct{}),
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	e.ref = newExecutorRef(e)

	go e.threadMain()

	// Readiness handshake: a job enqueued before the worker has captured its
	// run loop would be silently lost. Do not return until the loop exists.
	<-e.ready

	return e
}

// threadMain is the entire lifetime of the dedicated worker thread.
func (e *ThreadAffinityExecutor) threadMain() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.loop = newRunLoop()
	e.threadID = currentGoroutineID()
	close(e.ready)

	e.logger.Debug("affinity worker parked", "executor", e.name, "thread_id", e.threadID)
	e.loop.run()
	e.logger.Debug("affinity worker exited", "executor", e.name, "thread_id", e.threadID)
}

// Name returns the executor's debug label.
func (e *ThreadAffinityExecutor) Name() string {
	return e.name
}

// Ref returns the canonical identity handle for this executor.
func (e *ThreadAffinityExecutor) Ref() ExecutorRef {
	return e.ref
}

// ThreadID returns the identity of the dedicated worker thread, as captured
// during construction. Every job enqueued on this executor executes on the
// goroutine with this id, pinned to one OS thread.
func (e *ThreadAffinityExecutor) ThreadID() uint64 {
	return e.threadID
}

// Enqueue schedules job onto the dedicated thread. It never blocks, never
// runs job on the calling goroutine, and explicitly wakes the run loop in
// case it is parked with no other work. Jobs enqueued after Stop are dropped.
func (e *ThreadAffinityExecutor) Enqueue(job Job) {
	if e.cancelled.Load() {
		e.reject("stopped")
		return
	}

	ctx := withExecutorRef(context.Background(), e.ref)
	e.pending.Add(1)
	e.loop.perform(func() {
		defer e.pending.Add(-1)
		e.runJob(ctx, job)
	})
	e.loop.wakeUp()
}

// EnqueueAfter schedules job onto the dedicated thread after delay.
// time.AfterFunc fires on its own goroutine and re-enters the normal enqueue
// path, so the affinity guarantee is preserved.
func (e *ThreadAffinityExecutor) EnqueueAfter(job Job, delay time.Duration) {
	if e.cancelled.Load() {
		e.reject("stopped")
		return
	}
	time.AfterFunc(delay, func() {
		e.Enqueue(job)
	})
}

// runJob executes job on the loop goroutine with panic containment.
func (e *ThreadAffinityExecutor) runJob(ctx context.Context, job Job) {
	start := time.Now()
	e.running.Store(1)
	defer func() {
		e.running.Store(0)
		if r := recover(); r != nil {
			e.metrics.RecordJobPanic(e.name, r)
			e.panicHandler.HandlePanic(ctx, e.name, -1, r, debug.Stack())
		}
	}()
	job(ctx)
	e.metrics.RecordJobDuration(e.name, QoSDefault, time.Since(start))
}

func (e *ThreadAffinityExecutor) reject(reason string) {
	e.rejected.Add(1)
	e.metrics.RecordJobRejected(e.name, reason)
	e.logger.Warn("job rejected", "executor", e.name, "reason", reason)
}

// Stop tears the executor down. The run loop's stop primitive may only be
// invoked from its own thread, so Stop delivers it as a callback through the
// same perform+wake path jobs use, then sets the cooperative cancelled flag.
// Jobs already performed before the stop callback still execute.
//
// Stop does not wait for the worker thread to exit; it only guarantees the
// stop request is delivered. Use Done to observe the worker exiting.
// Repeated calls are no-ops.
func (e *ThreadAffinityExecutor) Stop() {
	e.stopOnce.Do(func() {
		e.loop.perform(e.loop.requestStop)
		e.loop.wakeUp()
		e.cancelled.Store(true)
		e.logger.Debug("affinity executor stopping", "executor", e.name)
	})
}

// Done returns a channel closed once the worker thread has exited its run
// loop and unpinned from its OS thread. It never closes before Stop is
// called.
func (e *ThreadAffinityExecutor) Done() <-chan struct{} {
	return e.loop.doneCh()
}

// IsStopped returns true once Stop has been called.
func (e *ThreadAffinityExecutor) IsStopped() bool {
	return e.cancelled.Load()
}

// WaitIdle blocks until all jobs enqueued before the call have completed,
// by enqueueing a barrier job and waiting for it. Jobs enqueued after
// WaitIdle is called are not waited for.
func (e *ThreadAffinityExecutor) WaitIdle(ctx context.Context) error {
	if e.cancelled.Load() {
		return fmt.Errorf("executor %q is stopped", e.name)
	}

	done := make(chan struct{})
	e.Enqueue(func(context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a point-in-time snapshot of the executor.
func (e *ThreadAffinityExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		Name:     e.name,
		Type:     "thread_affinity",
		Pending:  int(e.pending.Load()),
		Running:  int(e.running.Load()),
		Rejected: e.rejected.Load(),
		Closed:   e.cancelled.Load(),
	}
}
