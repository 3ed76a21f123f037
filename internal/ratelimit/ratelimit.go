// Package ratelimit bounds how fast the submission API accepts new
// jobs, adapted from the teacher's per-tenant RateLimiter: this
// pipeline has no tenant concept, so keys are whatever the caller
// chooses to bucket by (in practice the submitter's remote address).
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned by both checks below when a caller
// is over its budget.
var ErrRateLimitExceeded = errors.New("ratelimit: exceeded")

// Limiter tracks a fixed one-minute submission window per key, plus
// a single fleet-wide concurrent-processing ceiling.
type Limiter struct {
	mu sync.Mutex

	maxConcurrentProcessing int
	maxSubmissionsPerMinute int
	windows                 map[string]*submissionWindow
}

type submissionWindow struct {
	count     int
	windowEnd time.Time
}

// New constructs a Limiter. maxConcurrentProcessing bounds how many
// jobs may sit in jobs:processing before CheckConcurrentLimit starts
// rejecting submissions; maxSubmissionsPerMinute bounds how many
// POST /jobs calls a single key may make per one-minute window.
func New(maxConcurrentProcessing, maxSubmissionsPerMinute int) *Limiter {
	return &Limiter{
		maxConcurrentProcessing: maxConcurrentProcessing,
		maxSubmissionsPerMinute: maxSubmissionsPerMinute,
		windows:                 make(map[string]*submissionWindow),
	}
}

// CheckConcurrentLimit rejects a submission once currentProcessing has
// reached the fleet-wide ceiling, protecting the worker fleet from
// being handed more work than it can ever drain concurrently.
func (l *Limiter) CheckConcurrentLimit(_ context.Context, currentProcessing int64) error {
	if int(currentProcessing) >= l.maxConcurrentProcessing {
		return ErrRateLimitExceeded
	}
	return nil
}

// CheckSubmissionRate rejects a submission once key has made
// maxSubmissionsPerMinute calls within its current window. A window
// opens with a key's first call after the previous one ended and lasts
// one minute.
func (l *Limiter) CheckSubmissionRate(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	window, exists := l.windows[key]
	if !exists || now.After(window.windowEnd) {
		l.windows[key] = &submissionWindow{count: 1, windowEnd: now.Add(time.Minute)}
		return nil
	}

	if window.count >= l.maxSubmissionsPerMinute {
		return ErrRateLimitExceeded
	}
	window.count++
	return nil
}
