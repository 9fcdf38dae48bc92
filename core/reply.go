package core

import (
	"context"
)

// JobWithResult is a job producing a typed result and an error.
type JobWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the result of a JobWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// EnqueueAndReply runs job on target, then enqueues reply on replyTo once
// the job has completed. If the job panics, the reply is not enqueued.
// If replyTo is nil, the job is enqueued without a reply.
//
// Neither enqueue blocks; the executors stay transparent conduits — a job
// body's error or panic never surfaces through Enqueue.
func EnqueueAndReply(target Executor, job Job, reply Job, replyTo Executor) {
	if replyTo == nil {
		target.Enqueue(job)
		return
	}

	target.Enqueue(func(ctx context.Context) {
		// The executor's own recovery sees the panic first and contains it;
		// this flag only decides whether the reply runs.
		panicked := true
		defer func() {
			if panicked {
				return
			}
			replyTo.Enqueue(reply)
		}()
		job(ctx)
		panicked = false
	})
}

// EnqueueAndReplyResult runs job on target and delivers its result and
// error to reply on replyTo. The job always completes before the reply
// starts, and the reply sees the final values written by the job; the
// sequencing in the wrapped job establishes the happens-before edge.
//
// This is the supported way for a caller to observe a job-body error: the
// error surfaces at the reply, never at the enqueue call.
func EnqueueAndReplyResult[T any](target Executor, job JobWithResult[T], reply ReplyWithResult[T], replyTo Executor) {
	var result T
	var err error

	wrappedJob := func(ctx context.Context) {
		result, err = job(ctx)
	}
	wrappedReply := func(ctx context.Context) {
		reply(ctx, result, err)
	}

	EnqueueAndReply(target, wrappedJob, wrappedReply, replyTo)
}
