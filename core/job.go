package core

import (
	"context"
)

// Job is the opaque unit of work supplied by the host runtime.
//
// A Job is single-use: its closure may be invoked at most once, and ownership
// transfers to the accepting executor at enqueue time. Enforcing the
// run-exactly-once contract is the job author's responsibility; executors are
// transparent conduits and never observe, log, or transform job outcomes.
type Job func(ctx context.Context)

// =============================================================================
// QoS: Scheduling priority class
// =============================================================================

// QoS maps logical urgency to the scheduler's priority. Higher values are
// scheduled before lower values when the dispatch pool has queued work.
type QoS int

const (
	// QoSBackground: Lowest priority, for work the user is not waiting on.
	QoSBackground QoS = iota

	// QoSUtility: Long-running work with visible progress.
	QoSUtility

	// QoSDefault: The default class when no QoS is specified.
	QoSDefault

	// QoSUserInitiated: Work started by the user that blocks further interaction.
	QoSUserInitiated

	// QoSInteractive: Highest priority.
	// `Interactive` work sits on the user's critical path (UI, event handling).
	// Starving it makes the application feel unresponsive.
	QoSInteractive
)

// String returns the lower-case label used in logs and metrics.
func (q QoS) String() string {
	switch q {
	case QoSBackground:
		return "background"
	case QoSUtility:
		return "utility"
	case QoSDefault:
		return "default"
	case QoSUserInitiated:
		return "user_initiated"
	case QoSInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// =============================================================================
// Context Helper
// =============================================================================
type executorRefKeyType struct{}

var executorRefKey executorRefKeyType

// withExecutorRef attaches the canonical executor reference to a job context.
func withExecutorRef(ctx context.Context, ref ExecutorRef) context.Context {
	return context.WithValue(ctx, executorRefKey, ref)
}

// CurrentExecutorRef returns the reference of the executor running the
// current job. It reports false when ctx does not originate from an executor.
// The returned reference is the canonical one, so it is safe to retain and to
// compare against references obtained from Ref().
func CurrentExecutorRef(ctx context.Context) (ExecutorRef, bool) {
	if v := ctx.Value(executorRefKey); v != nil {
		return v.(ExecutorRef), true
	}
	return ExecutorRef{}, false
}
