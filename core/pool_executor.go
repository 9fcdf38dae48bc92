package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Attribute selects a PoolExecutor's concurrency behavior.
type Attribute int

const (
	// AttributeSerial executes admitted jobs one at a time, in admission
	// order. This is the default.
	AttributeSerial Attribute = iota

	// AttributeConcurrent forwards every job independently, with no
	// ordering guarantee.
	AttributeConcurrent
)

func (a Attribute) String() string {
	switch a {
	case AttributeSerial:
		return "serial"
	case AttributeConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// PoolExecutor schedules jobs onto a dispatch pool — or, when a target
// executor is configured, nests under that target so its work inherits the
// target's thread placement and priority. It owns no goroutines.
//
// Serial mode drains one job per work item and yields between jobs
// (admission-order FIFO as enforced by the drain sequencing); concurrent
// mode gives no ordering guarantee. Construction and Enqueue cannot fail.
type PoolExecutor struct {
	name string
	qos  QoS
	attr Attribute

	// target, when non-nil, receives this executor's work items instead of
	// the dispatch pool. Immutable after construction.
	target Executor
	pool   *DispatchPool

	queue JobQueue // serial-mode admission queue

	mu       sync.Mutex
	draining bool

	closed atomic.Bool
	ref    ExecutorRef

	running  atomic.Int32
	rejected atomic.Int64

	panicHandler PanicHandler
	metrics      Metrics
	logger       *slog.Logger
}

// NewPoolExecutor creates a pool executor with the full configuration
// surface. target may be nil, in which case work items go to pool.
func NewPoolExecutor(label string, qos QoS, attr Attribute, target Executor, pool *DispatchPool) *PoolExecutor {
	return NewPoolExecutorWithConfig(label, qos, attr, target, pool, DefaultExecutorConfig())
}

// NewSerialPoolExecutor creates a strictly serial pool executor.
func NewSerialPoolExecutor(label string, qos QoS, pool *DispatchPool) *PoolExecutor {
	return NewPoolExecutor(label, qos, AttributeSerial, nil, pool)
}

// NewConcurrentPoolExecutor creates a fully concurrent pool executor.
func NewConcurrentPoolExecutor(label string, qos QoS, pool *DispatchPool) *PoolExecutor {
	return NewPoolExecutor(label, qos, AttributeConcurrent, nil, pool)
}

// NewPoolExecutorWithConfig creates a pool executor with explicit ambient
// collaborators.
func NewPoolExecutorWithConfig(label string, qos QoS, attr Attribute, target Executor, pool *DispatchPool, config *ExecutorConfig) *PoolExecutor {
	cfg := config.withDefaults()
	e := &PoolExecutor{
		name:         label,
		qos:          qos,
		attr:         attr,
		target:       target,
		pool:         pool,
		queue:        NewFIFOJobQueue(),
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	e.ref = newExecutorRef(e)
	return e
}

// Name returns the executor's debug label. The label has no behavioral effect.
func (e *PoolExecutor) Name() string {
	return e.name
}

// Ref returns the canonical identity handle for this executor.
func (e *PoolExecutor) Ref() ExecutorRef {
	return e.ref
}

// Attribute returns the immutable concurrency attribute.
func (e *PoolExecutor) Attribute() Attribute {
	return e.attr
}

// QoS returns the immutable priority class work items are admitted under.
func (e *PoolExecutor) QoS() QoS {
	return e.qos
}

// Target returns the parent executor this one nests under, or nil.
func (e *PoolExecutor) Target() Executor {
	return e.target
}

// dispatch hands a work item to the target executor when one is configured,
// otherwise to the dispatch pool at this executor's QoS.
func (e *PoolExecutor) dispatch(item Job) {
	if e.target != nil {
		e.target.Enqueue(item)
		return
	}
	e.pool.Post(item, e.qos)
}

// Enqueue admits job and returns immediately. It never blocks and never
// fails; jobs enqueued after Close are dropped.
func (e *PoolExecutor) Enqueue(job Job) {
	if e.closed.Load() {
		e.reject("closed")
		return
	}

	if e.attr == AttributeConcurrent {
		e.dispatch(func(ctx context.Context) {
			e.runJob(withExecutorRef(ctx, e.ref), job)
		})
		return
	}

	e.queue.Push(job, e.qos)
	e.scheduleDrain()
}

// EnqueueAfter admits job after delay, re-entering the normal enqueue path.
func (e *PoolExecutor) EnqueueAfter(job Job, delay time.Duration) {
	if e.closed.Load() {
		e.reject("closed")
		return
	}
	time.AfterFunc(delay, func() {
		e.Enqueue(job)
	})
}

// scheduleDrain starts the serial drain sequence if it is not already in
// flight. At most one drainOne work item exists at a time; that is the
// serial-ordering invariant.
func (e *PoolExecutor) scheduleDrain() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	e.dispatch(e.drainOne)
}

// drainOne executes a single job, then either re-posts itself or ends the
// drain sequence. Executing one job per work item yields the underlying
// pool (or target) to other executors between jobs.
func (e *PoolExecutor) drainOne(ctx context.Context) {
	if item, ok := e.queue.Pop(); ok {
		e.runJob(withExecutorRef(ctx, e.ref), item.Job)
	}

	// The emptiness check and the draining flag share one critical section
	// with scheduleDrain, so an enqueue racing with this exit either sees
	// draining still set or re-schedules the drain itself.
	e.mu.Lock()
	if e.queue.IsEmpty() {
		e.draining = false
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.dispatch(e.drainOne)
}

func (e *PoolExecutor) runJob(ctx context.Context, job Job) {
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

func (e *PoolExecutor) reject(reason string) {
	e.rejected.Add(1)
	e.metrics.RecordJobRejected(e.name, reason)
	e.logger.Warn("job rejected", "executor", e.name, "reason", reason)
}

// Close stops accepting jobs and discards anything still queued. Jobs
// already dispatched run to completion.
func (e *PoolExecutor) Close() {
	e.closed.Store(true)
	e.queue.Clear()
}

// IsClosed returns true if the executor has been closed.
func (e *PoolExecutor) IsClosed() bool {
	return e.closed.Load()
}

// WaitIdle blocks until all jobs enqueued before the call have completed.
// Only meaningful in serial mode, where the barrier job's execution implies
// every earlier job has finished.
func (e *PoolExecutor) WaitIdle(ctx context.Context) error {
	if e.closed.Load() {
		return fmt.Errorf("executor %q is closed", e.name)
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
func (e *PoolExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		Name:     e.name,
		Type:     "pool_" + e.attr.String(),
		Pending:  e.queue.Len(),
		Running:  int(e.running.Load()),
		Rejected: e.rejected.Load(),
		Closed:   e.closed.Load(),
	}
}
