// Package retry implements the C7 Retry Controller of spec.md §4.7:
// count failures, compute backoff, requeue or dead-letter. Every
// failure is handled the same way, whatever its cause.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/metrics"
	"subtitle-pipeline/internal/store"
)

// Controller decides whether a failed job gets another attempt or is
// moved to the dead-letter queue, and owns the best-effort in-process
// requeue timer (spec.md §4.7, §9).
type Controller struct {
	s              store.Store
	jobs           *job.Writer
	maxRetries     int
	initialBackoff time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	// afterFunc is swappable in tests so they don't have to wait out
	// real backoff delays.
	afterFunc func(d time.Duration, f func())
}

// New constructs a Controller with the tuning constants of spec.md
// §6 (MAX_RETRIES default 3, INITIAL_BACKOFF_MS default 2000). m may
// be nil, in which case retry/dead-letter counts simply aren't
// recorded.
func New(s store.Store, jobs *job.Writer, maxRetries int, initialBackoff time.Duration, logger *slog.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		s:              s,
		jobs:           jobs,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		logger:         logger,
		metrics:        m,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Handle implements spec.md §4.7: increments retryCount atomically
// and either schedules a best-effort requeue onto queue:low after an
// exponential backoff, or moves the job straight to the dead-letter
// queue once retries are exhausted. The job is guaranteed to leave in
// queued:retry or failed:dlq, never a processing:* state (spec.md
// §4.8's failure-handling contract).
func (c *Controller) Handle(ctx context.Context, jobID string, cause error) error {
	retryCount, err := c.jobs.IncrRetryCount(ctx, jobID)
	if err != nil {
		return fmt.Errorf("retry: increment retry count for %s: %w", jobID, err)
	}

	message := cause.Error()
	if err := c.jobs.SetError(ctx, jobID, message); err != nil {
		return fmt.Errorf("retry: set error for %s: %w", jobID, err)
	}

	if retryCount <= c.maxRetries {
		return c.scheduleRetry(ctx, jobID, retryCount, message)
	}
	return c.deadLetter(ctx, jobID, retryCount, message)
}

func (c *Controller) scheduleRetry(ctx context.Context, jobID string, retryCount int, message string) error {
	if err := c.jobs.SetStatus(ctx, jobID, job.StatusQueuedRetry); err != nil {
		return fmt.Errorf("retry: set status queued:retry for %s: %w", jobID, err)
	}

	if c.metrics != nil {
		c.metrics.IncrementRetriedJobs()
	}

	backoff := exponentialBackoff(retryCount, c.initialBackoff)
	c.logger.Info("job failed, scheduling retry",
		slog.String("job_id", jobID),
		slog.Int("retry_count", retryCount),
		slog.Duration("backoff", backoff),
		slog.String("error", message))

	c.afterFunc(backoff, func() {
		requeueCtx := context.Background()
		if err := c.s.LPushValue(requeueCtx, store.QueueLow, jobID); err != nil {
			c.logger.Error("failed to requeue job after backoff",
				slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
	})
	return nil
}

func (c *Controller) deadLetter(ctx context.Context, jobID string, retryCount int, message string) error {
	if err := c.jobs.SetStatus(ctx, jobID, job.StatusFailedDLQ); err != nil {
		return fmt.Errorf("retry: set status failed:dlq for %s: %w", jobID, err)
	}
	if err := c.s.LPushValue(ctx, store.QueueDLQ, jobID); err != nil {
		return fmt.Errorf("retry: push %s to dlq: %w", jobID, err)
	}
	if c.metrics != nil {
		c.metrics.IncrementFailedJobs()
	}
	c.logger.Warn("job exhausted retries, moved to dead-letter queue",
		slog.String("job_id", jobID),
		slog.Int("retry_count", retryCount),
		slog.String("error", message))
	return nil
}

// exponentialBackoff computes 2^(retryCount-1) * initial, i.e. the
// first retry waits one initial interval, the second waits two, the
// third waits four (spec.md §4.7: 2s, 4s, 8s for the 2000ms default).
func exponentialBackoff(retryCount int, initial time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	multiplier := int64(1) << (retryCount - 1)
	return time.Duration(multiplier) * initial
}
