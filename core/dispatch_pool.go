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

// DispatchPool is the in-process analog of the platform's managed worker
// pool: a fixed set of worker goroutines pulling admitted jobs from a
// QoS-priority scheduler. The queue and pool executors delegate their thread
// management here; they hold no goroutines of their own.
//
// Admission via post never blocks: the scheduler queue is unbounded and the
// signal channel send is best-effort.
type DispatchPool struct {
	id      string
	workers int

	queue  JobQueue
	signal chan struct{}

	metricQueued int32 // Waiting in the scheduler queue
	metricActive int32 // Executing in a worker

	panicHandler PanicHandler
	metrics      Metrics
	logger       *slog.Logger

	// Lifecycle
	shuttingDown int32 // atomic flag
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	runningMu    sync.RWMutex
}

// NewDispatchPool creates a pool with a QoS-priority scheduler and default
// collaborators. The pool must be started before it executes anything.
func NewDispatchPool(id string, workers int) *DispatchPool {
	return NewDispatchPoolWithConfig(id, workers, DefaultExecutorConfig())
}

// NewDispatchPoolWithConfig creates a pool with explicit collaborators.
func NewDispatchPoolWithConfig(id string, workers int, config *ExecutorConfig) *DispatchPool {
	if workers < 1 {
		workers = 1
	}
	cfg := config.withDefaults()
	return &DispatchPool{
		id:           id,
		workers:      workers,
		queue:        NewPriorityJobQueue(),
		signal:       make(chan struct{}, workers*2),
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Start starts all worker goroutines
func (p *DispatchPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}

	p.logger.Debug("dispatch pool started", "pool", p.id, "workers", p.workers)
}

// Stop stops the pool and discards queued jobs.
func (p *DispatchPool) Stop() {
	// Always mark shutdown and clear the queue to release job references,
	// even if the pool was never started.
	atomic.StoreInt32(&p.shuttingDown, 1)
	p.queue.Clear()

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()

	p.logger.Debug("dispatch pool stopped", "pool", p.id)
}

// StopGraceful waits for queued and active jobs to finish before stopping.
// Returns an error if timeout is exceeded; queued jobs are then discarded.
func (p *DispatchPool) StopGraceful(timeout time.Duration) error {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.runningMu.Unlock()

	atomic.StoreInt32(&p.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var timeoutErr error
drain:
	for {
		select {
		case <-deadline:
			p.queue.Clear()
			timeoutErr = fmt.Errorf("dispatch pool %q: graceful stop timeout after %v", p.id, timeout)
			break drain
		case <-ticker.C:
			if p.QueuedJobCount() == 0 && p.ActiveJobCount() == 0 {
				break drain
			}
		}
	}

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()

	return timeoutErr
}

// Join waits for all worker goroutines to finish
func (p *DispatchPool) Join() {
	p.wg.Wait()
}

// ID returns the ID of the pool
func (p *DispatchPool) ID() string {
	return p.id
}

// IsRunning returns whether the pool is running
func (p *DispatchPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// Post admits a job at the given QoS. It never blocks the caller; jobs
// posted while the pool is shutting down are dropped.
func (p *DispatchPool) Post(job Job, qos QoS) {
	if atomic.LoadInt32(&p.shuttingDown) == 1 {
		p.metrics.RecordJobRejected(p.id, "shutting down")
		p.logger.Warn("job rejected", "pool", p.id, "reason", "shutting down")
		return
	}

	p.queue.Push(job, qos)
	atomic.AddInt32(&p.metricQueued, 1)

	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full, but the job is already queued; a worker will
		// pick it up on its next pass.
	}
}

// getWork blocks until a job is available or stopCh is closed.
func (p *DispatchPool) getWork(stopCh <-chan struct{}) (JobItem, bool) {
	for {
		if item, ok := p.queue.Pop(); ok {
			atomic.AddInt32(&p.metricQueued, -1)
			return item, true
		}

		select {
		case <-p.signal:
			continue
		case <-stopCh:
			return JobItem{}, false
		}
	}
}

// workerLoop is the main loop for each worker
func (p *DispatchPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		item, ok := p.getWork(stopCh)
		if !ok {
			return
		}

		atomic.AddInt32(&p.metricActive, 1)
		start := time.Now()

		func() {
			defer func() {
				atomic.AddInt32(&p.metricActive, -1)
				if r := recover(); r != nil {
					p.metrics.RecordJobPanic(p.id, r)
					p.panicHandler.HandlePanic(ctx, p.id, id, r, debug.Stack())
				}
			}()
			item.Job(ctx)
		}()

		p.metrics.RecordJobDuration(p.id, item.QoS, time.Since(start))
	}
}

// WorkerCount returns the number of workers
func (p *DispatchPool) WorkerCount() int {
	return p.workers
}

func (p *DispatchPool) QueuedJobCount() int {
	return int(atomic.LoadInt32(&p.metricQueued))
}

func (p *DispatchPool) ActiveJobCount() int {
	return int(atomic.LoadInt32(&p.metricActive))
}

// Stats returns a point-in-time snapshot of the pool.
func (p *DispatchPool) Stats() PoolStats {
	return PoolStats{
		ID:      p.id,
		Workers: p.workers,
		Queued:  p.QueuedJobCount(),
		Active:  p.ActiveJobCount(),
		Running: p.IsRunning(),
	}
}
