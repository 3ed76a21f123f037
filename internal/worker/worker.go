// Package worker implements the C9 Worker Loop of spec.md §4.9: the
// long-running pull-dispatch loop every worker process runs, grounded
// on the teacher's WorkerService.ProcessJobs loop but replacing the
// lease-based repository poll with the two-level semaphore and
// priority queue pop of spec.md §4.1/§4.5.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/semaphore"
	"subtitle-pipeline/internal/store"
)

// catastrophicSleep is how long the loop pauses after an error it
// cannot attribute to a specific job (e.g. the coordination store
// itself is unreachable), mirroring the teacher's 1s backoff on lease
// errors.
const catastrophicSleep = 5 * time.Second

// Loop runs the worker pull-dispatch cycle of spec.md §4.9 until ctx
// is canceled.
type Loop struct {
	store      store.Store
	globalSem  *semaphore.Limiter
	executor   *pipeline.Executor
	logger     *slog.Logger
	workerName string
}

// New constructs a worker Loop bound to the global concurrency
// semaphore and the pipeline Executor that drives each job.
func New(s store.Store, globalSem *semaphore.Limiter, executor *pipeline.Executor, workerName string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		store:      s,
		globalSem:  globalSem,
		executor:   executor,
		logger:     logger,
		workerName: workerName,
	}
}

// Run blocks, repeatedly acquiring a global slot, pulling the next
// job from queue:high before queue:low, and driving it through the
// pipeline, until ctx is canceled. It returns ctx.Err() on
// cancellation and is the body of every worker process's main loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			l.logger.Error("worker loop step failed, pausing before retry",
				slog.String("worker", l.workerName), slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(catastrophicSleep):
			}
		}
	}
}

// step performs one iteration of spec.md §4.9: acquire a global slot,
// block on the priority queues, drive the job, then release the slot
// on every exit path (including a panic-free early return).
func (l *Loop) step(ctx context.Context) error {
	if err := l.globalSem.Acquire(ctx); err != nil {
		return err
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		releaseCtx := context.Background()
		if err := l.globalSem.Release(releaseCtx); err != nil {
			l.logger.Error("failed to release global semaphore",
				slog.String("worker", l.workerName), slog.String("error", err.Error()))
		}
	}
	defer release()

	_, jobID, err := l.store.BRPop(ctx, 0, store.QueueHigh, store.QueueLow)
	if err != nil {
		return err
	}

	l.logger.Info("job dequeued", slog.String("worker", l.workerName), slog.String("job_id", jobID))
	if err := l.executor.Run(ctx, jobID); err != nil {
		return err
	}
	return nil
}
