package executors

import "github.com/execfabric/go-executors/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the executors package for most use cases.

// Job is the opaque unit of work (Closure)
type Job = core.Job

// QoS maps logical urgency to scheduler priority
type QoS = core.QoS

// Executor is the uniform job submission interface
type Executor = core.Executor

// ExecutorRef is the identity-stable executor handle
type ExecutorRef = core.ExecutorRef

// ThreadAffinityExecutor pins all its jobs to one dedicated OS thread
type ThreadAffinityExecutor = core.ThreadAffinityExecutor

// BoundedQueueExecutor caps simultaneously executing jobs
type BoundedQueueExecutor = core.BoundedQueueExecutor

// PoolExecutor schedules onto the dispatch pool, serial or concurrent
type PoolExecutor = core.PoolExecutor

// Attribute selects a PoolExecutor's concurrency behavior
type Attribute = core.Attribute

// DispatchPool is the shared worker pool backing queue and pool executors
type DispatchPool = core.DispatchPool

// ExecutorConfig carries the ambient collaborators (panic handler, metrics, logger)
type ExecutorConfig = core.ExecutorConfig

// QoS constants, ordered from least to most urgent
const (
	QoSBackground    QoS = core.QoSBackground
	QoSUtility       QoS = core.QoSUtility
	QoSDefault       QoS = core.QoSDefault
	QoSUserInitiated QoS = core.QoSUserInitiated
	QoSInteractive   QoS = core.QoSInteractive
)

// Concurrency attributes for PoolExecutor
const (
	AttributeSerial     Attribute = core.AttributeSerial
	AttributeConcurrent Attribute = core.AttributeConcurrent
)

// CurrentExecutorRef retrieves the running job's executor reference from its context
var CurrentExecutorRef = core.CurrentExecutorRef

// NewThreadAffinityExecutor creates an executor with a dedicated OS thread.
// The constructor blocks until the worker thread is parked and ready.
func NewThreadAffinityExecutor(name string) *ThreadAffinityExecutor {
	return core.NewThreadAffinityExecutor(name)
}
