// Package executors provides pluggable execution backends for a cooperative
// task runtime: given an opaque job, each backend decides on which thread and
// under what scheduling policy it runs, behind one uniform, non-blocking
// submission contract.
//
// # Backends
//
// ThreadAffinityExecutor: owns one dedicated, long-lived OS thread; every
// job enqueued on it runs on that same thread, in FIFO order. Use it for
// work keyed on thread identity (CGO thread-local state, real-time callback
// feeds, main-thread simulation).
//
// BoundedQueueExecutor: schedules jobs on the shared dispatch pool with at
// most maxConcurrent executing simultaneously.
//
// PoolExecutor: schedules jobs on the shared dispatch pool, either strictly
// serial (default) or fully concurrent, optionally nested under a target
// executor for thread-placement and priority inheritance.
//
// # Quick Start
//
//	affinity := executors.NewThreadAffinityExecutor("io-thread")
//	defer affinity.Stop()
//
//	affinity.Enqueue(func(ctx context.Context) {
//		// Runs on the dedicated thread, always the same one.
//	})
//
//	queue := executors.NewBoundedQueueExecutor("crawler", 4, executors.QoSUtility)
//	queue.Enqueue(func(ctx context.Context) {
//		// At most 4 of these run at once.
//	})
//
// # The submission contract
//
// Enqueue never blocks the caller, never runs the job synchronously, and
// never fails; job-body failures are the job author's concern and are
// observed through a reply (see EnqueueAndReplyResult), never through the
// executor. Each executor exposes an identity-stable ExecutorRef usable for
// equality checks and re-entrant scheduling.
//
// # The dispatch pool
//
// The queue and pool executors delegate thread management to a shared
// DispatchPool — worker goroutines pulling from a QoS-priority scheduler.
// The global pool is created lazily at first use and sized to GOMAXPROCS;
// call InitGlobalDispatchPool first to size it explicitly.
package executors
