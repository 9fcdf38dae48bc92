package core

import (
	"sync/atomic"
)

// =============================================================================
// Executor: Define job submission interface
// =============================================================================

// Executor accepts jobs and decides on which thread or pool they run.
//
// The submission contract shared by all backends:
//   - Enqueue never blocks the caller and never runs the job synchronously
//     on the calling goroutine.
//   - Enqueue cannot fail; job-body failures are invisible to the executor.
//   - Ref returns an identity-stable reference the host runtime may retain
//     beyond a single call and use for equality checks.
type Executor interface {
	Enqueue(job Job)
	Ref() ExecutorRef
	Name() string
}

// =============================================================================
// ExecutorRef: Identity-stable executor handle
// =============================================================================

// executor instance ids are process-wide and never reused. id 0 is reserved
// for the zero ExecutorRef.
var nextExecutorID atomic.Uint64

// ExecutorRef is a lightweight, copyable handle identifying one executor
// instance. Each executor constructs its canonical reference exactly once and
// returns that same value from every Ref() call; the host runtime relies on
// this for equality-based de-duplication and recursive enqueueing.
//
// Two refs obtained from the same executor instance always compare equal;
// refs from distinct instances never do.
type ExecutorRef struct {
	id   uint64
	exec Executor
}

// newExecutorRef allocates the canonical reference for exec. Called once per
// executor instance, from its constructor.
func newExecutorRef(exec Executor) ExecutorRef {
	return ExecutorRef{id: nextExecutorID.Add(1), exec: exec}
}

// ID returns the executor instance's unique id. The zero ref has id 0.
func (r ExecutorRef) ID() uint64 {
	return r.id
}

// Valid reports whether the ref identifies an executor instance.
func (r ExecutorRef) Valid() bool {
	return r.id != 0
}

// Equal reports whether both refs identify the same executor instance.
// Equality is defined on instance identity, never reconstructed per call.
func (r ExecutorRef) Equal(other ExecutorRef) bool {
	return r.id == other.id
}

// Executor returns the owning executor, for re-entrant scheduling.
func (r ExecutorRef) Executor() Executor {
	return r.exec
}

// Enqueue re-enters the owning executor. Calling Enqueue on the zero ref is
// a no-op.
func (r ExecutorRef) Enqueue(job Job) {
	if r.exec != nil {
		r.exec.Enqueue(job)
	}
}
