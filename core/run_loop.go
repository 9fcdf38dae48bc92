package core

import (
	"sync"
)

// runLoop is the minimal event loop owned by a ThreadAffinityExecutor's
// worker goroutine. The worker parks inside run until callbacks are
// performed onto the loop and the loop is woken; it then dispatches the
// callbacks in FIFO order and parks again.
//
// Thread safety: perform and wakeUp may be called from any goroutine.
// requestStop is NOT safe to call from other goroutines — it must be
// delivered as a performed callback so it executes on the loop goroutine,
// which is the only writer and reader of the stop flag during dispatch.
type runLoop struct {
	mu      sync.Mutex
	pending []func()
	spare   []func() // reused batch buffer to avoid per-wake allocation

	// wake has capacity 1: a parked loop needs exactly one token to unpark,
	// so the non-blocking send in wakeUp deduplicates racing wake requests.
	wake chan struct{}

	// stop is owned by the loop goroutine. It is only ever set by
	// requestStop running as a callback, and read between batches.
	stop bool

	// done is closed when run returns, after the loop has fully drained.
	done chan struct{}
}

func newRunLoop() *runLoop {
	return &runLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// perform schedules fn to run on the loop goroutine. It never blocks and
// does not wake the loop; pair it with wakeUp to guarantee prompt dispatch
// when the loop may be parked with nothing else to do.
func (l *runLoop) perform(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// wakeUp unparks the loop if it is parked. Never blocks.
func (l *runLoop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
		// A wake token is already pending; the loop will see our work when
		// it unparks.
	}
}

// requestStop marks the loop for termination. May only run on the loop
// goroutine, i.e. as a performed callback.
func (l *runLoop) requestStop() {
	l.stop = true
}

// doneCh is closed once run has returned.
func (l *runLoop) doneCh() <-chan struct{} {
	return l.done
}

// run dispatches callbacks until a callback calls requestStop, then returns.
// Callbacks pending at the time the stop callback executes still run if they
// were performed before it; anything performed after is dropped when the
// loop exits.
func (l *runLoop) run() {
	defer close(l.done)

	for {
		batch := l.swapPending()
		for i, fn := range batch {
			fn()
			batch[i] = nil // release the closure for GC
		}

		if l.stop {
			return
		}

		// Park only when nothing arrived while dispatching. A producer that
		// performs after this check also sends a wake token, so the receive
		// below cannot miss it.
		l.mu.Lock()
		empty := len(l.pending) == 0
		l.mu.Unlock()
		if empty {
			<-l.wake
		}
	}
}

// swapPending takes the pending batch, installing the spare buffer in its
// place so producers never contend with dispatch.
func (l *runLoop) swapPending() []func() {
	l.mu.Lock()
	batch := l.pending
	l.pending = l.spare[:0]
	l.spare = batch
	l.mu.Unlock()
	return batch
}
