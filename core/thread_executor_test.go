package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestThreadAffinityExecutor_BasicExecution tests basic execution functionality
// Main test items:
// 1. Create ThreadAffinityExecutor and enqueue a job
// 2. Verify the job executes
// 3. Constructor returns an executor that is immediately usable
func TestThreadAffinityExecutor_BasicExecution(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	var executed atomic.Bool
	done := make(chan struct{})

	exec.Enqueue(func(ctx context.Context) {
		executed.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Job was not executed")
	}

	if !executed.Load() {
		t.Error("Job was not executed")
	}
}

// TestThreadAffinityExecutor_ThreadAffinity tests the core affinity guarantee
// Main test items:
// 1. Enqueue jobs from the constructing goroutine and from other goroutines
// 2. Verify every job observes the same goroutine id
// 3. Verify the observed id matches ThreadID()
func TestThreadAffinityExecutor_ThreadAffinity(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	const jobs = 20
	ids := make([]uint64, jobs)
	var wg sync.WaitGroup
	wg.Add(jobs)

	for i := 0; i < jobs; i++ {
		idx := i
		enqueue := func() {
			exec.Enqueue(func(ctx context.Context) {
				ids[idx] = currentGoroutineID()
				wg.Done()
			})
		}
		if i%2 == 0 {
			enqueue()
		} else {
			go enqueue()
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Jobs did not complete")
	}

	want := exec.ThreadID()
	if want == 0 {
		t.Fatal("ThreadID() returned 0")
	}
	for i, got := range ids {
		if got != want {
			t.Errorf("Job %d ran on goroutine %d, want dedicated thread %d", i, got, want)
		}
	}
}

// TestThreadAffinityExecutor_ExecutionOrder tests FIFO ordering
// Main test items:
// 1. Enqueue multiple jobs from one goroutine
// 2. Verify jobs execute in submission order
// 3. All jobs are executed
func TestThreadAffinityExecutor_ExecutionOrder(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	var order []int
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		id := i
		exec.Enqueue(func(ctx context.Context) {
			order = append(order, id)
		})
	}
	exec.Enqueue(func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Jobs did not complete")
	}

	if len(order) != 10 {
		t.Fatalf("Expected 10 jobs executed, got %d", len(order))
	}
	for i := 0; i < 10; i++ {
		if order[i] != i {
			t.Errorf("Job order incorrect: expected %d at position %d, got %d", i, i, order[i])
		}
	}
}

// TestThreadAffinityExecutor_NonBlockingEnqueue tests the non-blocking contract
// Main test items:
// 1. Occupy the dedicated thread with a slow job
// 2. Verify Enqueue returns immediately while the thread is busy
// 3. The enqueued job still executes afterwards
func TestThreadAffinityExecutor_NonBlockingEnqueue(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	exec.Enqueue(func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started

	var executed atomic.Bool
	enqueueDone := make(chan struct{})
	go func() {
		exec.Enqueue(func(ctx context.Context) {
			executed.Store(true)
		})
		close(enqueueDone)
	}()

	select {
	case <-enqueueDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Enqueue blocked while the dedicated thread was busy")
	}

	if executed.Load() {
		t.Error("Job ran synchronously on the calling goroutine")
	}

	close(release)
	if err := exec.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
	if !executed.Load() {
		t.Error("Job enqueued while busy was not executed")
	}
}

// TestThreadAffinityExecutor_RefStability tests executor reference identity
// Main test items:
// 1. Ref() returns the same reference on every call
// 2. Jobs observe the executor's reference via their context
// 3. References of distinct executors never compare equal
func TestThreadAffinityExecutor_RefStability(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	ref1 := exec.Ref()
	ref2 := exec.Ref()
	if !ref1.Equal(ref2) {
		t.Error("Ref() returned unequal references for the same executor")
	}
	if !ref1.Valid() {
		t.Error("Executor reference should be valid")
	}

	var ctxRef ExecutorRef
	var found bool
	done := make(chan struct{})
	exec.Enqueue(func(ctx context.Context) {
		ctxRef, found = CurrentExecutorRef(ctx)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Job did not complete")
	}

	if !found {
		t.Fatal("CurrentExecutorRef not found in job context")
	}
	if !ctxRef.Equal(ref1) {
		t.Error("Context reference does not match the executor's canonical reference")
	}

	other := NewThreadAffinityExecutor("test-affinity-2")
	defer other.Stop()
	if other.Ref().Equal(ref1) {
		t.Error("Distinct executors returned equal references")
	}
}

// TestThreadAffinityExecutor_ReentrantEnqueue tests re-entrant scheduling
// Main test items:
// 1. A running job enqueues a follow-up job through its context reference
// 2. The follow-up executes on the same dedicated thread
// 3. No deadlock occurs when enqueueing from the loop itself
func TestThreadAffinityExecutor_ReentrantEnqueue(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	var followUpThread uint64
	done := make(chan struct{})

	exec.Enqueue(func(ctx context.Context) {
		ref, ok := CurrentExecutorRef(ctx)
		if !ok {
			t.Error("CurrentExecutorRef not found in job context")
			close(done)
			return
		}
		ref.Enqueue(func(ctx context.Context) {
			followUpThread = currentGoroutineID()
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Re-entrant job did not execute")
	}

	if followUpThread != exec.ThreadID() {
		t.Errorf("Re-entrant job ran on goroutine %d, want %d", followUpThread, exec.ThreadID())
	}
}

// TestThreadAffinityExecutor_Stop tests teardown
// Main test items:
// 1. Jobs enqueued before Stop still execute
// 2. Jobs enqueued after Stop are dropped
// 3. Done() observes the worker thread exiting
func TestThreadAffinityExecutor_Stop(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")

	var executed atomic.Bool
	exec.Enqueue(func(ctx context.Context) {
		executed.Store(true)
	})

	exec.Stop()

	select {
	case <-exec.Done():
	case <-time.After(time.Second):
		t.Fatal("Worker thread did not exit after Stop")
	}

	if !executed.Load() {
		t.Error("Job enqueued before Stop was not executed")
	}
	if !exec.IsStopped() {
		t.Error("Executor should report stopped after Stop()")
	}

	var late atomic.Bool
	exec.Enqueue(func(ctx context.Context) {
		late.Store(true)
	})
	time.Sleep(50 * time.Millisecond)
	if late.Load() {
		t.Error("Job enqueued after Stop should not execute")
	}
}

// TestThreadAffinityExecutor_IdempotentStop tests repeated stops
// Main test items:
// 1. Call Stop multiple times
// 2. Verify repeated calls do not panic or block
// 3. Executor remains in stopped state
func TestThreadAffinityExecutor_IdempotentStop(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")

	exec.Stop()
	exec.Stop()
	exec.Stop()

	select {
	case <-exec.Done():
	case <-time.After(time.Second):
		t.Fatal("Worker thread did not exit")
	}

	if !exec.IsStopped() {
		t.Error("Executor should be stopped")
	}
}

// TestThreadAffinityExecutor_NoLeakAfterStop tests goroutine cleanup
// Main test items:
// 1. Construct and stop many executors in a loop
// 2. Wait for each worker to exit via Done()
// 3. Verify the process goroutine count does not grow
func TestThreadAffinityExecutor_NoLeakAfterStop(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		exec := NewThreadAffinityExecutor("leak-check")
		exec.Enqueue(func(ctx context.Context) {})
		exec.Stop()
		select {
		case <-exec.Done():
		case <-time.After(time.Second):
			t.Fatal("Worker thread did not exit")
		}
	}

	// Give the runtime a moment to retire exited goroutines.
	time.Sleep(50 * time.Millisecond)
	after := runtime.NumGoroutine()

	if after > before+5 {
		t.Errorf("Goroutine leak: before=%d after=%d", before, after)
	}
}

// TestThreadAffinityExecutor_PanicRecovery tests panic containment
// Main test items:
// 1. Enqueue a job that panics
// 2. Verify subsequent jobs still execute on the same thread
// 3. The dedicated thread survives the panic
func TestThreadAffinityExecutor_PanicRecovery(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	exec.Enqueue(func(ctx context.Context) {
		panic("test panic")
	})

	var executed atomic.Bool
	var gid uint64
	done := make(chan struct{})
	exec.Enqueue(func(ctx context.Context) {
		executed.Store(true)
		gid = currentGoroutineID()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Job after panic was not executed")
	}

	if !executed.Load() {
		t.Error("Job after panic was not executed")
	}
	if gid != exec.ThreadID() {
		t.Error("Thread identity changed after panic")
	}
}

// TestThreadAffinityExecutor_EnqueueAfter tests delayed enqueue
// Main test items:
// 1. Enqueue a job with a delay and verify it does not run early
// 2. Verify the job runs after the delay on the dedicated thread
// 3. Delay is measured from the EnqueueAfter call
func TestThreadAffinityExecutor_EnqueueAfter(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	var gid atomic.Uint64
	start := time.Now()
	done := make(chan struct{})

	exec.EnqueueAfter(func(ctx context.Context) {
		gid.Store(currentGoroutineID())
		close(done)
	}, 100*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if gid.Load() != 0 {
		t.Error("Delayed job executed too early")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Delayed job was not executed")
	}

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Delayed job executed too early: %v", elapsed)
	}
	if gid.Load() != exec.ThreadID() {
		t.Error("Delayed job did not run on the dedicated thread")
	}
}

// TestThreadAffinityExecutor_ConcurrentEnqueue tests concurrent submission
// Main test items:
// 1. Enqueue jobs from multiple goroutines simultaneously
// 2. Verify no jobs are lost
// 3. All jobs run on the dedicated thread
func TestThreadAffinityExecutor_ConcurrentEnqueue(t *testing.T) {
	exec := NewThreadAffinityExecutor("test-affinity")
	defer exec.Stop()

	var counter atomic.Int32
	var wrongThread atomic.Int32
	want := exec.ThreadID()
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				exec.Enqueue(func(ctx context.Context) {
					counter.Add(1)
					if currentGoroutineID() != want {
						wrongThread.Add(1)
					}
				})
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if err := exec.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	if counter.Load() != 100 {
		t.Errorf("Expected 100 jobs executed, got %d", counter.Load())
	}
	if wrongThread.Load() != 0 {
		t.Errorf("%d jobs ran off the dedicated thread", wrongThread.Load())
	}
}
