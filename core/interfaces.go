package core

import (
	"context"
	"log/slog"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling job panics
// =============================================================================

// PanicHandler is called when a job panics during execution.
// Executors contain the panic so a failing job cannot take down a worker or
// the affinity thread's run loop; the handler decides what to do with it.
//
// Implementations must be safe for concurrent use.
type PanicHandler interface {
	// HandlePanic is called when a job panics.
	//
	// Parameters:
	// - ctx: The context from the panicked job (carries the executor ref)
	// - executorName: The label of the executor the job was enqueued on
	// - workerID: The dispatch pool worker id (-1 for the affinity thread)
	// - panicInfo: The panic value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through slog.
type DefaultPanicHandler struct {
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// HandlePanic logs the panic at error level with the stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("job panicked",
		"executor", executorName,
		"worker_id", workerID,
		"panic", panicInfo,
		"stack", string(stackTrace))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting job execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods must be non-blocking and fast to avoid impacting job execution.
type Metrics interface {
	// RecordJobDuration records how long a job took to execute.
	RecordJobDuration(executor string, qos QoS, duration time.Duration)

	// RecordJobPanic records that a job panicked during execution.
	RecordJobPanic(executor string, panicInfo any)

	// RecordQueueDepth records the current admission queue depth.
	RecordQueueDepth(executor string, depth int)

	// RecordJobRejected records that a job was dropped (e.g., enqueued after
	// the executor was closed).
	RecordJobRejected(executor string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordJobDuration is a no-op.
func (m *NilMetrics) RecordJobDuration(executor string, qos QoS, duration time.Duration) {}

// RecordJobPanic is a no-op.
func (m *NilMetrics) RecordJobPanic(executor string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(executor string, depth int) {}

// RecordJobRejected is a no-op.
func (m *NilMetrics) RecordJobRejected(executor string, reason string) {}

// =============================================================================
// ExecutorConfig: Shared configuration for executors and the dispatch pool
// =============================================================================

// ExecutorConfig holds the ambient collaborators of an executor.
// All fields are optional; defaults are applied where nil.
type ExecutorConfig struct {
	// PanicHandler is called when a job panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics records job execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Logger receives lifecycle and drop events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultExecutorConfig returns a config with default collaborators.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
		Logger:       slog.Default(),
	}
}

// withDefaults fills nil fields, tolerating a nil receiver.
func (c *ExecutorConfig) withDefaults() *ExecutorConfig {
	out := &ExecutorConfig{}
	if c != nil {
		*out = *c
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
