package executors

import (
	"context"
	"runtime"
	"sync"

	"github.com/execfabric/go-executors/core"
)

// =============================================================================
// Global Dispatch Pool (lazily-created singleton)
// =============================================================================

var (
	globalPool *core.DispatchPool
	globalMu   sync.Mutex
)

// InitGlobalDispatchPool initializes and starts the global dispatch pool
// with the given worker count. Calling it after the pool exists (explicitly
// initialized or lazily created) is a no-op.
func InitGlobalDispatchPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return // Already initialized
	}

	globalPool = core.NewDispatchPool("global-pool", workers)
	globalPool.Start(context.Background())
}

// GlobalDispatchPool returns the global dispatch pool, creating and starting
// it on first use sized to GOMAXPROCS. Executors delegate their thread
// management here, so the pool comes into existence lazily once the first
// job could need it.
func GlobalDispatchPool() *core.DispatchPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		globalPool = core.NewDispatchPool("global-pool", runtime.GOMAXPROCS(0))
		globalPool.Start(context.Background())
	}
	return globalPool
}

// ShutdownGlobalDispatchPool stops the global pool. A subsequent use
// lazily creates a fresh one.
func ShutdownGlobalDispatchPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		globalPool.Stop()
		globalPool = nil
	}
}

// =============================================================================
// Convenience constructors on the global pool
// =============================================================================

// NewBoundedQueueExecutor creates a queue executor backed by the global
// dispatch pool. A maxConcurrent below 1 selects the platform maximum.
func NewBoundedQueueExecutor(label string, maxConcurrent int, qos QoS) *BoundedQueueExecutor {
	return core.NewBoundedQueueExecutor(label, maxConcurrent, qos, GlobalDispatchPool())
}

// NewSerialPoolExecutor creates a strictly serial pool executor backed by
// the global dispatch pool.
func NewSerialPoolExecutor(label string, qos QoS) *PoolExecutor {
	return core.NewSerialPoolExecutor(label, qos, GlobalDispatchPool())
}

// NewConcurrentPoolExecutor creates a fully concurrent pool executor backed
// by the global dispatch pool.
func NewConcurrentPoolExecutor(label string, qos QoS) *PoolExecutor {
	return core.NewConcurrentPoolExecutor(label, qos, GlobalDispatchPool())
}

// NewPoolExecutor creates a pool executor with the full configuration
// surface. A non-nil target redirects the executor's work items to that
// executor instead of the global pool.
func NewPoolExecutor(label string, qos QoS, attr Attribute, target Executor) *PoolExecutor {
	return core.NewPoolExecutor(label, qos, attr, target, GlobalDispatchPool())
}
