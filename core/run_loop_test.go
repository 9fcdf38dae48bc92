package core

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestRunLoop_DispatchOrder tests callback dispatch ordering
// Main test items:
// 1. Perform multiple callbacks onto a parked loop
// 2. Verify callbacks run in FIFO order
// 3. All callbacks are dispatched
func TestRunLoop_DispatchOrder(t *testing.T) {
	loop := newRunLoop()
	go loop.run()

	var order []int
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		id := i
		loop.perform(func() {
			order = append(order, id)
		})
	}
	loop.perform(func() {
		close(done)
	})
	loop.wakeUp()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not dispatch callbacks")
	}

	if len(order) != 10 {
		t.Fatalf("Expected 10 callbacks dispatched, got %d", len(order))
	}
	for i := 0; i < 10; i++ {
		if order[i] != i {
			t.Errorf("Callback order incorrect: expected %d at position %d, got %d", i, i, order[i])
		}
	}

	loop.perform(loop.requestStop)
	loop.wakeUp()
	<-loop.doneCh()
}

// TestRunLoop_ParkAndWake tests parking behavior
// Main test items:
// 1. Loop parks when no callbacks are pending
// 2. A perform+wakeUp pair unparks the loop promptly
// 3. Redundant wakeUp calls are deduplicated without blocking
func TestRunLoop_ParkAndWake(t *testing.T) {
	loop := newRunLoop()
	go loop.run()

	// Loop should be parked; redundant wakes must not block
	loop.wakeUp()
	loop.wakeUp()
	loop.wakeUp()

	var executed atomic.Bool
	done := make(chan struct{})
	loop.perform(func() {
		executed.Store(true)
		close(done)
	})
	loop.wakeUp()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("parked loop was not woken")
	}
	if !executed.Load() {
		t.Error("Callback was not executed after wake")
	}

	loop.perform(loop.requestStop)
	loop.wakeUp()
	<-loop.doneCh()
}

// TestRunLoop_StopDrainsEarlierCallbacks tests stop semantics
// Main test items:
// 1. Callbacks performed before the stop callback still execute
// 2. The loop exits after the stop callback runs
// 3. doneCh is closed exactly when run returns
func TestRunLoop_StopDrainsEarlierCallbacks(t *testing.T) {
	loop := newRunLoop()
	go loop.run()

	var counter atomic.Int32
	for i := 0; i < 5; i++ {
		loop.perform(func() {
			counter.Add(1)
		})
	}
	loop.perform(loop.requestStop)
	loop.wakeUp()

	select {
	case <-loop.doneCh():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after stop request")
	}

	if counter.Load() != 5 {
		t.Errorf("Expected 5 callbacks before stop, got %d", counter.Load())
	}
}

// TestRunLoop_ConcurrentPerform tests concurrent producers
// Main test items:
// 1. Perform callbacks from multiple goroutines simultaneously
// 2. Verify no callbacks are lost
// 3. Loop keeps dispatching across batches
func TestRunLoop_ConcurrentPerform(t *testing.T) {
	loop := newRunLoop()
	go loop.run()

	var counter atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				loop.perform(func() {
					counter.Add(1)
				})
				loop.wakeUp()
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	// Barrier callback: everything performed above is dispatched before it.
	barrier := make(chan struct{})
	loop.perform(func() {
		close(barrier)
	})
	loop.wakeUp()

	select {
	case <-barrier:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain concurrent callbacks")
	}

	if counter.Load() != 100 {
		t.Errorf("Expected 100 callbacks dispatched, got %d", counter.Load())
	}

	loop.perform(loop.requestStop)
	loop.wakeUp()
	<-loop.doneCh()
}
